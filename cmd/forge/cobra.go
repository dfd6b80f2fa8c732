package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tmellor/forge/internal/credential"
	"github.com/tmellor/forge/internal/forgelog"
	"github.com/tmellor/forge/internal/profilestore"
	"github.com/tmellor/forge/pkg/command"
	"github.com/tmellor/forge/pkg/handler"
	"github.com/tmellor/forge/pkg/processor"
	"github.com/tmellor/forge/pkg/response"
)

// app bundles the process-wide collaborators every leaf command's
// Processor is constructed from: one handler registry, one credential
// backend, and one profile manager. The credential backend is shared by
// the whole process.
type app struct {
	root        *command.CommandNode
	rootName    string
	handlers    *handler.Registry
	credentials credential.Backend
	profiles    *profilestore.Manager
	metrics     *processor.Metrics
}

// buildCobraTree mirrors node's children into cobra.Command groups and
// leaves, binding each leaf's OptionSpec to cobra flags (positionals pass
// through as cobra's args) and wiring its RunE to construct and run a
// Processor. Cobra is the argv
// front-end only; it never appears below this file.
func (a *app) buildCobraTree(node *command.CommandNode) *cobra.Command {
	cmd := &cobra.Command{
		Use:   node.Name,
		Short: node.Description,
	}

	if node.Kind == command.KindCommand {
		bindOptions(cmd, node)
		cmd.Flags().Bool("describe", false, "print this command's Arguments as a JSON Schema document and exit")
		cmd.RunE = a.runLeaf(node)
		return cmd
	}

	for _, child := range node.Children {
		cmd.AddCommand(a.buildCobraTree(child))
	}
	return cmd
}

// bindOptions adds one cobra flag per declared OptionSpec, typed by
// ValueType. Arrays bind as comma-separated string slices; numbers bind as
// float64 to match the Syntax Validator's NumericRange comparisons.
func bindOptions(cmd *cobra.Command, node *command.CommandNode) {
	for _, opt := range node.Options {
		switch opt.Type {
		case command.TypeBoolean:
			cmd.Flags().Bool(opt.Name, false, "")
		case command.TypeNumber:
			cmd.Flags().Float64(opt.Name, 0, "")
		case command.TypeArray:
			cmd.Flags().StringSlice(opt.Name, nil, "")
		default:
			cmd.Flags().String(opt.Name, "", "")
		}
	}
}

// runLeaf returns the RunE that runs node's Processor against the flags
// and positional args cobra parsed for this invocation.
func (a *app) runLeaf(node *command.CommandNode) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if describe, _ := cmd.Flags().GetBool("describe"); describe {
			return printSchema(cmd, node)
		}

		format, _ := cmd.Flags().GetString("format")
		silent, _ := cmd.Flags().GetBool("silent")

		invokeArgs := command.NewArguments()
		for _, opt := range node.Options {
			if !cmd.Flags().Changed(opt.Name) {
				continue
			}
			val, err := readFlag(cmd, opt)
			if err != nil {
				return err
			}
			invokeArgs.Named[opt.Name] = val
		}
		for _, posArg := range args {
			invokeArgs.PositionalList = append(invokeArgs.PositionalList, posArg)
		}

		proc := processor.New(processor.Config{
			Node:        node,
			Root:        a.root,
			RootName:    a.rootName,
			Profiles:    a.profiles,
			Credentials: a.credentials,
			Handlers:    a.handlers,
			Metrics:     a.metrics,
			JSONWriter:  os.Stdout,
		})

		snap := proc.Invoke(processor.InvokeParams{
			Ctx:       cmd.Context(),
			Arguments: invokeArgs,
			Silent:    silent,
			Format:    response.Format(format),
		})

		if response.Format(format) != response.FormatJSON && !silent {
			if err := response.RenderDefault(os.Stdout, os.Stderr, snap); err != nil {
				forgelog.Warn("failed to render response", "error", err)
			}
		}

		if !snap.Success {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			os.Exit(snap.ExitCode)
		}
		return nil
	}
}

// printSchema backs the --describe flag: it renders node's Arguments as a
// JSON Schema document (pkg/command.CommandNode.Schema) instead of running
// the command.
func printSchema(cmd *cobra.Command, node *command.CommandNode) error {
	schema, err := node.Schema()
	if err != nil {
		return fmt.Errorf("generating schema: %w", err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(schema)
}

func readFlag(cmd *cobra.Command, opt command.OptionSpec) (any, error) {
	switch opt.Type {
	case command.TypeBoolean:
		return cmd.Flags().GetBool(opt.Name)
	case command.TypeNumber:
		return cmd.Flags().GetFloat64(opt.Name)
	case command.TypeArray:
		ss, err := cmd.Flags().GetStringSlice(opt.Name)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(ss))
		for i, s := range ss {
			out[i] = s
		}
		return out, nil
	default:
		return cmd.Flags().GetString(opt.Name)
	}
}
