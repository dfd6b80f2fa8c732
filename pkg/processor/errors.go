package processor

import (
	"github.com/tmellor/forge/internal/profilestore"
	"github.com/tmellor/forge/pkg/response"
)

// prepareError is the internal carrier for every failure that can occur
// during the Prepare pipeline stage (stdin, profile resolution), unified
// so finish-stage code only has to translate one shape into a
// response.ErrorRecord.
type prepareError struct {
	subkind string
	message string
	cause   error
}

func (e *prepareError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *prepareError) Unwrap() error { return e.cause }

// translateProfileError maps a profilestore resolution failure onto the
// Preparation error subkinds.
func translateProfileError(err error) error {
	switch e := err.(type) {
	case *profilestore.CycleError:
		return &prepareError{subkind: response.SubkindProfileCycle, message: "profile dependency cycle detected", cause: e}
	case *profilestore.DependencyError:
		return &prepareError{subkind: response.SubkindDependencyFailed, message: "profile dependency failed to resolve", cause: e}
	case *profilestore.CredentialError:
		return &prepareError{subkind: response.SubkindCredentialMissing, message: "required secure field could not be materialized", cause: e}
	default:
		return &prepareError{subkind: response.SubkindProfileMissing, message: "profile could not be loaded", cause: err}
	}
}

// prepareErrorRecord converts a prepare-stage failure into the
// ErrorRecord the Response carries to Finalize.
func prepareErrorRecord(err error) *response.ErrorRecord {
	pe, ok := err.(*prepareError)
	if !ok {
		return &response.ErrorRecord{
			Kind:    response.KindInternal,
			Subkind: response.SubkindUnknown,
			Message: err.Error(),
		}
	}
	rec := &response.ErrorRecord{
		Kind:    response.KindPreparation,
		Subkind: pe.subkind,
		Message: pe.message,
	}
	if pe.cause != nil {
		rec.AdditionalDetails = pe.cause.Error()
	}
	return rec
}
