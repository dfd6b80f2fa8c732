package handler

// ImperativeError is returned by a handler that wants to report a
// specific, already-composed failure message and details, the richest
// shape in the handler-error mapping table, carried to error kind
// HandlerImperative verbatim.
type ImperativeError struct {
	Message           string
	AdditionalDetails string
	CauseErrors       []error
}

func (e *ImperativeError) Error() string { return e.Message }

// UnhandledError is returned by a handler reporting an unexpected internal
// failure along with a stack trace, mapped to error kind HandlerUnhandled
// with message "Unexpected Command Error: <Message>" and additionalDetails
// set to Stack.
type UnhandledError struct {
	Message string
	Stack   string
}

func (e *UnhandledError) Error() string { return e.Message }

// StringRejectError is returned by a handler rejecting with a bare string
// rather than a structured error, mapped to error kind HandlerStringReject
// with message set to the string verbatim.
type StringRejectError string

func (e StringRejectError) Error() string { return string(e) }
