// Package response implements the per-invocation Response accumulator: a
// thread-confined value with a live stream sink and an in-memory buffer,
// finalized once into an immutable, JSON-serializable snapshot.
package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle stage of a Response.
type State string

const (
	StateFresh      State = "Fresh"
	StateValidating State = "Validating"
	StatePreparing  State = "Preparing"
	StateExecuting  State = "Executing"
	StateFinalized  State = "Finalized"
)

// Format selects how a finalized Response renders to its live sinks.
type Format string

const (
	FormatDefault Format = "default"
	FormatJSON    Format = "json"
)

// ErrorKind is the closed taxonomy of failure categories a Response may
// carry. Subkinds (Preparation.*, Internal.*) are carried in Subkind.
type ErrorKind string

const (
	KindSyntax              ErrorKind = "Syntax"
	KindPreparation         ErrorKind = "Preparation"
	KindHandlerImperative   ErrorKind = "HandlerImperative"
	KindHandlerUnhandled    ErrorKind = "HandlerUnhandled"
	KindHandlerStringReject ErrorKind = "HandlerStringReject"
	KindHandlerSilentReject ErrorKind = "HandlerSilentReject"
	KindInternal            ErrorKind = "Internal"
)

// Preparation subkinds.
const (
	SubkindProfileMissing    = "ProfileMissing"
	SubkindProfileCycle      = "ProfileCycle"
	SubkindDependencyFailed  = "DependencyFailed"
	SubkindCredentialMissing = "CredentialMissing"
	SubkindStdinFailed       = "StdinFailed"
)

// Internal subkinds.
const (
	SubkindMissingSecureField   = "MissingSecureField"
	SubkindHandlerInstantiation = "HandlerInstantiation"
	SubkindBadFormat            = "BadFormat"
	SubkindCancelled            = "Cancelled"
	SubkindUnknown              = "Unknown"
)

// ErrorRecord describes a finalized failure.
type ErrorRecord struct {
	Kind              ErrorKind      `json:"kind"`
	Subkind           string         `json:"subkind,omitempty"`
	Message           string         `json:"message"`
	AdditionalDetails string         `json:"additionalDetails,omitempty"`
	Stack             string         `json:"stack,omitempty"`
	CauseChain        []*ErrorRecord `json:"causeChain,omitempty"`
}

func (e *ErrorRecord) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ProgressSpec describes the single active progress indicator a Response
// may hold at a time.
type ProgressSpec struct {
	Label string
	Total int
}

// Snapshot is the frozen, JSON-serializable form of a Response, returned
// from finalize(). Its field set is the stable wire format.
type Snapshot struct {
	Success  bool       `json:"success"`
	ExitCode int        `json:"exitCode"`
	Message  string     `json:"message"`
	Data     any        `json:"data"`
	Stdout   string     `json:"stdout"`
	Stderr   string     `json:"stderr"`
	Error    *wireError `json:"error"`
}

// wireError is the stable wire-format error shape, which uses "msg"
// rather than ErrorRecord's Go-side "message".
type wireError struct {
	Msg               string `json:"msg"`
	AdditionalDetails string `json:"additionalDetails,omitempty"`
	CauseErrors       any    `json:"causeErrors,omitempty"`
	Stack             string `json:"stack,omitempty"`
}

// ExitSuccess and ExitFailure are the two well-known process exit codes:
// the framework never produces any other value.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Response is the per-invocation accumulator. It is not safe for concurrent
// use from multiple goroutines; an invocation is a single logical thread of
// control between suspension points.
type Response struct {
	mu sync.Mutex

	id     string
	format Format
	silent bool

	state State

	stdout bytes.Buffer
	stderr bytes.Buffer

	stdoutSink io.Writer
	stderrSink io.Writer

	data    any
	message string

	progress *ProgressSpec

	success  bool
	finished bool
	err      *ErrorRecord

	finalized *Snapshot
}

// Option configures a new Response.
type Option func(*Response)

// WithSinks overrides the live stdout/stderr writers (default os.Stdout/os.Stderr
// are set by the caller via this option; a Response constructed without it
// discards live output, which is useful in tests).
func WithSinks(stdout, stderr io.Writer) Option {
	return func(r *Response) {
		r.stdoutSink = stdout
		r.stderrSink = stderr
	}
}

// WithSilent suppresses live stream emission while preserving buffering.
func WithSilent(silent bool) Option {
	return func(r *Response) { r.silent = silent }
}

// WithFormat sets the render format used by WriteJSON and live emission.
func WithFormat(f Format) Option {
	return func(r *Response) { r.format = f }
}

// WithID overrides the generated invocation correlation id (tests, or a
// chained step that carries forward the parent invocation's id).
func WithID(id string) Option {
	return func(r *Response) { r.id = id }
}

// New constructs a Fresh Response.
func New(opts ...Option) *Response {
	r := &Response{
		id:     uuid.NewString(),
		format: FormatDefault,
		state:  StateFresh,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ID returns the invocation correlation id.
func (r *Response) ID() string { return r.id }

// SetState advances the lifecycle stage. It does not validate transition
// legality beyond rejecting mutation after Finalized; the Processor is
// responsible for calling it in pipeline order.
func (r *Response) SetState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateFinalized {
		return
	}
	r.state = s
}

func (r *Response) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// rejectIfFinalized reports whether the Response has already been
// finalized; callers must hold r.mu.
func (r *Response) rejectIfFinalized() bool {
	return r.state == StateFinalized
}

// Log appends text to the named stream ("stdout" or "stderr") and re-emits
// it live on the underlying sink unless silent. Further mutation after
// finalize is a no-op, per the Response's immutability invariant.
func (r *Response) Log(stream string, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejectIfFinalized() {
		return
	}

	var buf *bytes.Buffer
	var sink io.Writer
	switch stream {
	case "stderr":
		buf, sink = &r.stderr, r.stderrSink
	default:
		buf, sink = &r.stdout, r.stdoutSink
	}

	buf.WriteString(text)
	if !r.silent && sink != nil {
		_, _ = io.WriteString(sink, text)
	}
}

// Stdout appends to the stdout stream.
func (r *Response) Stdout(text string) { r.Log("stdout", text) }

// Stderr appends to the stderr stream.
func (r *Response) Stderr(text string) { r.Log("stderr", text) }

// SeedOutput pre-populates the buffered stdout/stderr, used when a chained
// step's Response is constructed carrying forward prior steps' cumulative
// output.
func (r *Response) SeedOutput(stdout, stderr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stdout.WriteString(stdout)
	r.stderr.WriteString(stderr)
}

// SetData sets the structured payload.
func (r *Response) SetData(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejectIfFinalized() {
		return
	}
	r.data = v
}

// SetMessage sets the human-readable summary message.
func (r *Response) SetMessage(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejectIfFinalized() {
		return
	}
	r.message = msg
}

// BeginProgress starts the single active progress indicator, replacing any
// prior one.
func (r *Response) BeginProgress(spec ProgressSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejectIfFinalized() {
		return
	}
	r.progress = &spec
}

// EndProgress clears the active progress indicator, if any.
func (r *Response) EndProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = nil
}

// Succeeded marks the terminal state as success. Calling it after an error
// has been set is a no-op: the first terminal state wins.
func (r *Response) Succeeded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejectIfFinalized() || r.finished {
		return
	}
	r.success = true
	r.finished = true
}

// Failed marks the terminal state as failure without attaching a specific
// ErrorRecord, for handlers that signal failure by calling Failed and
// returning normally.
func (r *Response) Failed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejectIfFinalized() || r.finished {
		return
	}
	r.finished = true
	if r.err == nil {
		r.err = &ErrorRecord{Kind: KindHandlerSilentReject, Message: "Command Failed"}
	}
}

// SetError attaches an ErrorRecord and implies Failed.
func (r *Response) SetError(e *ErrorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejectIfFinalized() || r.finished {
		return
	}
	r.err = e
	r.finished = true
}

// IsTerminal reports whether a success/error state has been set, even if
// not yet finalized.
func (r *Response) IsTerminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

// ErrorRecord returns a copy of the ErrorRecord attached via SetError/Failed,
// or nil if the Response hasn't failed. The wire-format snapshot omits the
// failure's own Kind/Subkind (only records in its CauseChain, carried as
// causeErrors, keep theirs), so nothing downstream of Finalize can read a
// failure's real kind back. Callers that compose one Response's outcome into another's (a
// chained step's Response folded into the chain's parent, say) use this to
// preserve that kind/subkind instead of reconstructing a guessed one.
func (r *Response) ErrorRecord() *ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		return nil
	}
	cp := *r.err
	return &cp
}

// Finalize freezes the Response and returns its snapshot. Subsequent calls
// return the same snapshot. Finalize is idempotent.
func (r *Response) Finalize() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized != nil {
		return r.finalized
	}

	exitCode := ExitSuccess
	success := r.success && r.err == nil
	if !success {
		exitCode = ExitFailure
	}

	var we *wireError
	if r.err != nil {
		we = &wireError{
			Msg:               r.err.Message,
			AdditionalDetails: r.err.AdditionalDetails,
			Stack:             r.err.Stack,
		}
		if len(r.err.CauseChain) > 0 {
			we.CauseErrors = r.err.CauseChain
		}
	}

	snap := &Snapshot{
		Success:  success,
		ExitCode: exitCode,
		Message:  r.message,
		Data:     r.data,
		Stdout:   r.stdout.String(),
		Stderr:   r.stderr.String(),
		Error:    we,
	}

	r.finalized = snap
	r.state = StateFinalized
	return snap
}

// WriteJSON renders Finalize()'s snapshot as a single JSON document to w.
// It is only meaningful when format is FormatJSON; callers in other formats
// should use the table/YAML renderers instead (see render.go).
func (r *Response) WriteJSON(w io.Writer) error {
	if r.format != FormatJSON {
		return fmt.Errorf("response: WriteJSON called with format %q", r.format)
	}
	snap := r.Finalize()
	enc := json.NewEncoder(w)
	return enc.Encode(snap)
}

// Format reports the Response's configured render format.
func (r *Response) Format() Format { return r.format }

// Silent reports whether live stream emission is suppressed.
func (r *Response) Silent() bool { return r.silent }
