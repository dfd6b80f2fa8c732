// Package syntax implements the Syntax Validator: deterministic, total,
// pure validation of parsed Arguments against a CommandNode's declared
// options and positionals, producing a closed set of Issue values. No
// violation short-circuits the walk: every applicable rule is checked and
// every violation reported.
package syntax

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/tmellor/forge/pkg/command"
)

// Severity of a reported Issue. The validator currently only emits Error;
// the field exists so a future rule (e.g. a deprecated option) can report
// Warning without changing the Result shape.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Reason is the closed set of violation kinds.
type Reason string

const (
	ReasonMissing          Reason = "Missing"
	ReasonTypeMismatch     Reason = "TypeMismatch"
	ReasonNotAllowedValue  Reason = "NotAllowedValue"
	ReasonConflict         Reason = "Conflict"
	ReasonImpliedMissing   Reason = "ImpliedMissing"
	ReasonRangeViolation   Reason = "RangeViolation"
	ReasonArrayCardinality Reason = "ArrayCardinality"
	ReasonUnknownOption    Reason = "UnknownOption"
)

// Issue is one reported violation.
type Issue struct {
	Severity           Severity
	OptionOrPositional string
	Reason             Reason
	Message            string
}

// Result is the output of Validate: valid iff issues contains no Severity
// Error entries.
type Result struct {
	Valid  bool
	Issues []Issue
}

// Validate checks args against node's declared options and positionals.
// It is deterministic, total (never stops at the first violation), and
// pure (no I/O, no mutation of either argument).
func Validate(node *command.CommandNode, args command.Arguments) Result {
	var issues []Issue

	issues = append(issues, validateOptions(node, args)...)
	issues = append(issues, validatePositionals(node, args)...)
	issues = append(issues, validateStructRules(node, args)...)

	valid := true
	for _, is := range issues {
		if is.Severity == SeverityError {
			valid = false
			break
		}
	}
	return Result{Valid: valid, Issues: issues}
}

func validateOptions(node *command.CommandNode, args command.Arguments) []Issue {
	var issues []Issue

	known := make(map[string]command.OptionSpec, len(node.Options))
	for _, o := range node.Options {
		known[o.Name] = o
	}

	// Unknown options: present in args but not declared on the node.
	for name := range args.Named {
		if _, ok := known[name]; !ok {
			issues = append(issues, Issue{
				Severity:           SeverityError,
				OptionOrPositional: name,
				Reason:             ReasonUnknownOption,
				Message:            fmt.Sprintf("unknown option %q", name),
			})
		}
	}

	reportedConflicts := map[string]bool{}

	for _, opt := range node.Options {
		val, present := args.Named[opt.Name]

		if opt.Required && !present {
			issues = append(issues, Issue{
				Severity:           SeverityError,
				OptionOrPositional: opt.Name,
				Reason:             ReasonMissing,
				Message:            fmt.Sprintf("missing required option %q", opt.Name),
			})
			continue
		}
		if !present {
			continue
		}

		if is, ok := checkType(opt.Name, opt.Type, val); !ok {
			issues = append(issues, is)
			continue
		}

		if len(opt.AllowedValues) > 0 && !allowedValueOK(opt.AllowedValues, val) {
			issues = append(issues, Issue{
				Severity:           SeverityError,
				OptionOrPositional: opt.Name,
				Reason:             ReasonNotAllowedValue,
				Message:            fmt.Sprintf("%q is not an allowed value for %q", fmt.Sprint(val), opt.Name),
			})
		}

		for _, other := range opt.ConflictsWith {
			if _, ok := args.Named[other]; !ok {
				continue
			}
			pairKey := conflictKey(opt.Name, other)
			if reportedConflicts[pairKey] {
				continue
			}
			reportedConflicts[pairKey] = true
			issues = append(issues, Issue{
				Severity:           SeverityError,
				OptionOrPositional: opt.Name,
				Reason:             ReasonConflict,
				Message:            fmt.Sprintf("%q conflicts with %q", opt.Name, other),
			})
		}

		for _, required := range opt.ImpliesPresenceOf {
			if _, ok := args.Named[required]; !ok {
				issues = append(issues, Issue{
					Severity:           SeverityError,
					OptionOrPositional: required,
					Reason:             ReasonImpliedMissing,
					Message:            fmt.Sprintf("%q requires %q to also be present", opt.Name, required),
				})
			}
		}

		if opt.NumericRange != nil {
			if is, ok := checkRange(opt.Name, *opt.NumericRange, val); !ok {
				issues = append(issues, is)
			}
		}

		if opt.ArrayBounds != nil {
			if is, ok := checkArrayBounds(opt.Name, *opt.ArrayBounds, val); !ok {
				issues = append(issues, is)
			}
		}
	}

	return issues
}

// validateStructRules layers node.StructRules's declarative tag rules
// underneath the OptionSpec walk above: when a node declares a StructRules
// prototype, args.Named is decoded into a fresh copy of it and run through
// StructTagIssues, giving hosts go-playground/validator rules (format
// checks, "oneof", conditional "required_with") the OptionSpec primitives
// don't express. A node without StructRules reports nothing here.
func validateStructRules(node *command.CommandNode, args command.Arguments) []Issue {
	if node.StructRules == nil {
		return nil
	}
	protoType := reflect.TypeOf(node.StructRules)
	if protoType.Kind() != reflect.Ptr {
		return nil
	}

	target := reflect.New(protoType.Elem()).Interface()
	if err := mapstructure.Decode(args.Named, target); err != nil {
		return nil
	}

	issues, err := StructTagIssues(target)
	if err != nil {
		return nil
	}
	return issues
}

func conflictKey(a, b string) string {
	if a < b {
		return a + "\x00" + b
	}
	return b + "\x00" + a
}

func validatePositionals(node *command.CommandNode, args command.Arguments) []Issue {
	var issues []Issue

	for i, spec := range node.Positionals {
		if i >= len(args.PositionalList) {
			if spec.Required {
				issues = append(issues, Issue{
					Severity:           SeverityError,
					OptionOrPositional: spec.Name,
					Reason:             ReasonMissing,
					Message:            fmt.Sprintf("missing required positional %q", spec.Name),
				})
			}
			continue
		}

		val := args.PositionalList[i]

		if is, ok := checkType(spec.Name, spec.Type, val); !ok {
			issues = append(issues, is)
			continue
		}

		if len(spec.AllowedValues) > 0 && !allowedValueOK(spec.AllowedValues, val) {
			issues = append(issues, Issue{
				Severity:           SeverityError,
				OptionOrPositional: spec.Name,
				Reason:             ReasonNotAllowedValue,
				Message:            fmt.Sprintf("%q is not an allowed value for %q", fmt.Sprint(val), spec.Name),
			})
		}

		if spec.NumericRange != nil {
			if is, ok := checkRange(spec.Name, *spec.NumericRange, val); !ok {
				issues = append(issues, is)
			}
		}
		if spec.ArrayBounds != nil {
			if is, ok := checkArrayBounds(spec.Name, *spec.ArrayBounds, val); !ok {
				issues = append(issues, is)
			}
		}
	}

	return issues
}

func checkType(name string, t command.ValueType, val any) (Issue, bool) {
	ok := false
	switch t {
	case command.TypeString:
		_, ok = val.(string)
	case command.TypeNumber:
		switch val.(type) {
		case float64, float32, int, int64:
			ok = true
		}
	case command.TypeBoolean:
		_, ok = val.(bool)
	case command.TypeArray:
		_, ok = val.([]any)
	default:
		ok = true
	}
	if ok {
		return Issue{}, true
	}
	return Issue{
		Severity:           SeverityError,
		OptionOrPositional: name,
		Reason:             ReasonTypeMismatch,
		Message:            fmt.Sprintf("%q expected type %s", name, t),
	}, false
}

func allowedValueOK(allowed []string, val any) bool {
	s := fmt.Sprint(val)
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}

func asFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func checkRange(name string, r command.NumericRange, val any) (Issue, bool) {
	f, ok := asFloat(val)
	if !ok {
		return Issue{}, true // type mismatch already reported separately
	}
	if r.Min != nil && f < *r.Min {
		return rangeIssue(name), false
	}
	if r.Max != nil && f > *r.Max {
		return rangeIssue(name), false
	}
	return Issue{}, true
}

func rangeIssue(name string) Issue {
	return Issue{
		Severity:           SeverityError,
		OptionOrPositional: name,
		Reason:             ReasonRangeViolation,
		Message:            fmt.Sprintf("%q is outside its allowed numeric range", name),
	}
}

func checkArrayBounds(name string, b command.ArrayCardinality, val any) (Issue, bool) {
	arr, ok := val.([]any)
	if !ok {
		return Issue{}, true
	}
	n := len(arr)
	if b.Min != nil && n < *b.Min {
		return cardinalityIssue(name), false
	}
	if b.Max != nil && n > *b.Max {
		return cardinalityIssue(name), false
	}
	return Issue{}, true
}

func cardinalityIssue(name string) Issue {
	return Issue{
		Severity:           SeverityError,
		OptionOrPositional: name,
		Reason:             ReasonArrayCardinality,
		Message:            fmt.Sprintf("%q has too many or too few array elements", name),
	}
}
