// Command forge is a demo CLI front-end for the command-processor engine
// in pkg/processor: cobra parses argv, builds command.Arguments, and hands
// each leaf off to its own Processor. Config and credential bootstrap run
// in the root command's PersistentPreRunE before any command body does.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tmellor/forge/internal/bootstrap"
	"github.com/tmellor/forge/internal/forgelog"
	"github.com/tmellor/forge/internal/profilestore"
	"github.com/tmellor/forge/pkg/handler"
	"github.com/tmellor/forge/pkg/processor"
)

func main() {
	os.Exit(run())
}

// run wires cmd/forge's process-wide collaborators in a root
// PersistentPreRunE, which cobra invokes only after argv has been parsed —
// so --config is known before bootstrap.Load reads it. The command tree
// itself is built up front; its leaves close over the shared *app and only
// read its fields once PersistentPreRunE has populated them.
func run() int {
	var configPath string

	a := &app{}
	root := &cobra.Command{
		Use:           "forge",
		Short:         "Demo command-processor host",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bootstrap(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a forge config file")
	root.PersistentFlags().String("format", "default", "output format: default or json")
	root.PersistentFlags().Bool("silent", false, "suppress all stdout/stderr output")

	tree := buildTree()
	a.root = tree
	a.rootName = tree.Name
	for _, child := range tree.Children {
		root.AddCommand(a.buildCobraTree(child))
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		return 1
	}
	return 0
}

// bootstrap loads configuration and constructs the credential backend,
// profile manager, handler registry, and metrics collector a's leaves run
// against. Called exactly once, from the root command's PersistentPreRunE.
func (a *app) bootstrap(configPath string) error {
	cfg, err := bootstrap.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := forgelog.Init(forgelog.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	credBackend, err := bootstrap.BuildCredentialBackend(cfg.Credential)
	if err != nil {
		return err
	}
	if err := credBackend.Initialize(context.Background()); err != nil {
		return fmt.Errorf("initializing credential backend: %w", err)
	}

	source, err := bootstrap.BuildProfileSource(cfg.Profile)
	if err != nil {
		return err
	}

	registry := handler.NewRegistry()
	registry.Register("greet", greetHandler)
	registry.Register("pipeline.step1", pipelineStep1Handler)
	registry.Register("pipeline.step2", pipelineStep2Handler)
	registry.Register("aws.s3.ls", s3ListHandler)

	a.credentials = credBackend
	a.profiles = profilestore.NewManager(source, credBackend)
	a.handlers = registry
	if cfg.MetricsEnabled {
		a.metrics = processor.NewMetrics(prometheus.DefaultRegisterer)
	}
	return nil
}
