// Package command defines the command tree: groups, commands, options,
// positionals, and the chained-handler steps a command may declare. It is
// the data model the processor resolves against; it never parses argv
// itself and never binds to a concrete flag-parsing library.
package command

import "fmt"

// Kind distinguishes an executable command from a grouping node.
type Kind string

const (
	KindGroup   Kind = "group"
	KindCommand Kind = "command"
)

// ValueType is the declared primitive type of an option or positional.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeArray   ValueType = "array"
)

// NumericRange bounds a numeric option or positional, inclusive.
type NumericRange struct {
	Min *float64
	Max *float64
}

// ArrayCardinality bounds the length of an array-typed value, inclusive.
type ArrayCardinality struct {
	Min *int
	Max *int
}

// OptionSpec describes a named, flag-style argument.
type OptionSpec struct {
	Name              string
	Type              ValueType
	Required          bool
	AllowedValues     []string
	ConflictsWith     []string
	ImpliesPresenceOf []string
	NumericRange      *NumericRange
	ArrayBounds       *ArrayCardinality
}

// PositionalSpec describes a positional argument, matched in declared order.
type PositionalSpec struct {
	Name          string
	Type          ValueType
	Required      bool
	AllowedValues []string
	NumericRange  *NumericRange
	ArrayBounds   *ArrayCardinality
}

// ArgMapping binds a value read from a prior chain step's structured data
// into a named argument for the current step.
type ArgMapping struct {
	FromPriorStepIndex int
	JSONPath           string
	ToArg              string
}

// ChainedStep is one handler invocation within a chained command.
type ChainedStep struct {
	HandlerRef string
	Silent     bool
	ArgMapping []ArgMapping
}

// ProfileRequirement lists the profile types a command needs, split into
// those that must resolve and those that may be absent.
type ProfileRequirement struct {
	Required []string
	Optional []string
}

// CommandNode is a vertex in the command tree: a group with children, or a
// leaf command with a handler (single or chained).
type CommandNode struct {
	Name            string
	Kind            Kind
	Description     string
	Aliases         []string
	Options         []OptionSpec
	Positionals     []PositionalSpec
	HandlerRef      string
	ChainedHandlers []ChainedStep
	Profile         *ProfileRequirement
	Children        []*CommandNode
	ReadsStdin      bool

	// StructRules, when non-nil, is a pointer to a zero-value struct whose
	// fields carry go-playground/validator `validate:"..."` tags and
	// `mapstructure:"..."` tags matching this node's option names. It backs
	// declarative cross-field/format rules (e.g. "email", "oneof") that sit
	// beneath the primitive OptionSpec checks the Syntax Validator already
	// performs; see internal/syntax.StructTagIssues.
	StructRules any

	// prepared is populated by Prepare and consulted by alias-aware
	// lookups; zero value means the node has not been prepared.
	prepared bool
	aliasIdx map[string]*CommandNode
}

// Arguments is the parsed, typed payload for one invocation: named values
// plus an ordered positional list. Values hold Go primitives matching the
// declared ValueType (string, float64, bool, []any) after parsing.
type Arguments struct {
	Named          map[string]any
	PositionalList []any
}

// NewArguments returns an empty, ready-to-populate Arguments value.
func NewArguments() Arguments {
	return Arguments{Named: map[string]any{}}
}

// Get returns a named argument and whether it was present.
func (a Arguments) Get(name string) (any, bool) {
	v, ok := a.Named[name]
	return v, ok
}

// Clone returns a shallow copy: a new Named map with the same values and a
// copied positional slice header, safe for independent mutation of the top
// level without touching the source.
func (a Arguments) Clone() Arguments {
	out := Arguments{
		Named:          make(map[string]any, len(a.Named)),
		PositionalList: append([]any(nil), a.PositionalList...),
	}
	for k, v := range a.Named {
		out.Named[k] = v
	}
	return out
}

// Validate checks the structural invariants of a single node: a command has
// exactly one of HandlerRef/ChainedHandlers, a group has children and no
// handler, and sibling names (including aliases) are unique. It does not
// recurse; call Prepare for whole-tree validation.
func (n *CommandNode) Validate() error {
	switch n.Kind {
	case KindCommand:
		hasSingle := n.HandlerRef != ""
		hasChain := len(n.ChainedHandlers) > 0
		if hasSingle == hasChain {
			return fmt.Errorf("command %q must declare exactly one of handlerRef or chainedHandlers", n.Name)
		}
	case KindGroup:
		if len(n.Children) == 0 {
			return fmt.Errorf("group %q must have at least one child", n.Name)
		}
		if n.HandlerRef != "" || len(n.ChainedHandlers) > 0 {
			return fmt.Errorf("group %q must not declare a handler", n.Name)
		}
	default:
		return fmt.Errorf("node %q has unknown kind %q", n.Name, n.Kind)
	}
	return siblingNamesUnique(n.Children)
}

func siblingNamesUnique(children []*CommandNode) error {
	seen := map[string]string{} // identifier -> owning node name, for error messages
	for _, c := range children {
		idents := append([]string{c.Name}, c.Aliases...)
		for _, id := range idents {
			if owner, ok := seen[id]; ok {
				return fmt.Errorf("name/alias %q claimed by both %q and %q", id, owner, c.Name)
			}
			seen[id] = c.Name
		}
	}
	return nil
}

// Prepare walks the tree rooted at n, validating every node, materializing
// alias lookup indices, and propagating inherited options (options declared
// on a group are appended to children that do not already declare an option
// of the same name). Prepare is idempotent: calling it again on an
// already-prepared tree is a no-op that returns nil.
func Prepare(root *CommandNode) error {
	return prepare(root, nil)
}

func prepare(n *CommandNode, inherited []OptionSpec) error {
	if n.prepared {
		return nil
	}
	if err := n.Validate(); err != nil {
		return err
	}

	merged := mergeOptions(inherited, n.Options)
	n.Options = merged

	n.aliasIdx = make(map[string]*CommandNode, len(n.Children)*2)
	for _, c := range n.Children {
		n.aliasIdx[c.Name] = c
		for _, a := range c.Aliases {
			n.aliasIdx[a] = c
		}
		if err := prepare(c, merged); err != nil {
			return err
		}
	}
	n.prepared = true
	return nil
}

// mergeOptions appends inherited options not already declared locally,
// preserving local declaration order first.
func mergeOptions(inherited, local []OptionSpec) []OptionSpec {
	if len(inherited) == 0 {
		return local
	}
	have := make(map[string]bool, len(local))
	for _, o := range local {
		have[o.Name] = true
	}
	out := append([]OptionSpec(nil), local...)
	for _, o := range inherited {
		if !have[o.Name] {
			out = append(out, o)
		}
	}
	return out
}

// Resolve looks up a child by name or alias. The tree must be prepared.
func (n *CommandNode) Resolve(identifier string) (*CommandNode, bool) {
	if !n.prepared {
		for _, c := range n.Children {
			if c.Name == identifier {
				return c, true
			}
			for _, a := range c.Aliases {
				if a == identifier {
					return c, true
				}
			}
		}
		return nil, false
	}
	c, ok := n.aliasIdx[identifier]
	return c, ok
}

// ResolvePath walks a sequence of identifiers from n to a leaf, alias-aware.
func (n *CommandNode) ResolvePath(path []string) (*CommandNode, error) {
	cur := n
	for _, seg := range path {
		next, ok := cur.Resolve(seg)
		if !ok {
			return nil, fmt.Errorf("no such command or group: %q under %q", seg, cur.Name)
		}
		cur = next
	}
	return cur, nil
}

// OptionByName returns the OptionSpec for name, if declared on n.
func (n *CommandNode) OptionByName(name string) (OptionSpec, bool) {
	for _, o := range n.Options {
		if o.Name == name {
			return o, true
		}
	}
	return OptionSpec{}, false
}
