package main

import "github.com/tmellor/forge/pkg/command"

// greetRules carries the "greet" command's one cross-field/format rule that
// OptionSpec has no primitive for: a supplied --email must actually look
// like an email address. command.CommandNode.StructRules decodes
// Arguments.Named into a fresh copy of this struct and runs it through
// go-playground/validator (see internal/syntax.StructTagIssues), layered
// underneath the OptionSpec walk.
type greetRules struct {
	Email string `mapstructure:"email" validate:"omitempty,email"`
}

// buildTree constructs the demo command tree: a "greet" leaf, a
// "pipeline" chained command, and a nested "aws s3 ls" leaf exercising
// profile resolution against a real third-party client. Hosts embedding the processor build an equivalent
// tree from their own command definitions; this one exists to give every
// pipeline stage something concrete to run against.
func buildTree() *command.CommandNode {
	root := &command.CommandNode{
		Name: "forge",
		Kind: command.KindGroup,
		Children: []*command.CommandNode{
			greetNode(),
			pipelineNode(),
			awsGroupNode(),
		},
	}
	if err := command.Prepare(root); err != nil {
		panic(err) // a malformed static demo tree is a programmer error
	}
	return root
}

func greetNode() *command.CommandNode {
	return &command.CommandNode{
		Name:        "greet",
		Kind:        command.KindCommand,
		Description: "Print a greeting for the given name",
		HandlerRef:  "greet",
		Options: []command.OptionSpec{
			{Name: "name", Type: command.TypeString, Required: true},
			{Name: "email", Type: command.TypeString},
		},
		StructRules: &greetRules{},
	}
}

func pipelineNode() *command.CommandNode {
	return &command.CommandNode{
		Name:        "pipeline",
		Kind:        command.KindCommand,
		Description: "Run a two-step chained handler demo",
		ChainedHandlers: []command.ChainedStep{
			{HandlerRef: "pipeline.step1"},
			{
				HandlerRef: "pipeline.step2",
				ArgMapping: []command.ArgMapping{
					{FromPriorStepIndex: 0, JSONPath: "token", ToArg: "auth"},
				},
			},
		},
	}
}

func awsGroupNode() *command.CommandNode {
	return &command.CommandNode{
		Name: "aws",
		Kind: command.KindGroup,
		Children: []*command.CommandNode{
			{
				Name: "s3",
				Kind: command.KindGroup,
				Children: []*command.CommandNode{
					{
						Name:        "ls",
						Kind:        command.KindCommand,
						Description: "List objects in the configured bucket",
						HandlerRef:  "aws.s3.ls",
						Options: []command.OptionSpec{
							{Name: "awsProfile", Type: command.TypeString, Required: false},
						},
						Profile: &command.ProfileRequirement{
							Required: []string{"aws"},
						},
					},
				},
			},
		},
	}
}
