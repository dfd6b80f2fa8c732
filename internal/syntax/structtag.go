package syntax

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// structValidator is a package-level instance; go-playground/validator/v10
// documents it as safe for concurrent use once struct-level caching warms
// up, so one instance serves the whole process.
var structValidator = validator.New()

// StructTagIssues validates a host-defined struct carrying `validate:"..."`
// tags (typically Arguments.Named decoded into a concrete Go struct by the
// caller) and converts go-playground/validator's field errors into Issue
// values, layered underneath the Issue-based walk in validator.go. This
// exists for hosts that want declarative cross-field rules (e.g. "oneof",
// "required_with") beyond the OptionSpec primitives Validate already
// covers; it never replaces that walk, only supplements it.
func StructTagIssues(v any) ([]Issue, error) {
	err := structValidator.Struct(v)
	if err == nil {
		return nil, nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, fmt.Errorf("syntax: unexpected validation error: %w", err)
	}

	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, Issue{
			Severity:           SeverityError,
			OptionOrPositional: fe.Field(),
			Reason:             reasonForTag(fe.Tag()),
			Message:            fe.Error(),
		})
	}
	return issues, nil
}

// reasonForTag maps a subset of go-playground/validator tag names onto
// the closed Reason set so struct-tag issues compose with Issue-based
// walk issues in one list.
func reasonForTag(tag string) Reason {
	switch tag {
	case "required", "required_with", "required_without":
		return ReasonMissing
	case "oneof":
		return ReasonNotAllowedValue
	case "min", "max", "gte", "lte", "gt", "lt":
		return ReasonRangeViolation
	case "excluded_with", "excluded_without":
		return ReasonConflict
	default:
		return ReasonTypeMismatch
	}
}
