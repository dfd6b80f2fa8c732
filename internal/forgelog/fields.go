package forgelog

// Field keys shared by the processor pipeline's log statements, so the
// same concept always lands under the same key regardless of which stage
// emitted it.
const (
	KeyInvocationID = "invocation_id" // Response correlation id
	KeyCommandPath  = "command_path"  // space-joined path to the resolved node
	KeyState        = "state"         // pipeline lifecycle state
	KeyHandlerRef   = "handler_ref"   // handler registry reference
	KeyExitCode     = "exit_code"     // exit code of a finalized invocation
	KeyDurationMs   = "duration_ms"   // invocation duration in milliseconds
	KeyError        = "error"         // error message
)
