// Package cli wires the cobra command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"docstorectl/internal/config"
	"docstorectl/internal/docstore"
	"docstorectl/internal/format"
	"docstorectl/internal/observability"
)

// options holds the persistent flag values shared by every command.
type options struct {
	profile    string
	configPath string
	debug      bool
	formatName string
	outputPath string
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "docstorectl",
		Short:         "Manage Qdrant and Solr document stores from one CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.profile, "profile", "default", "configuration profile to use")
	flags.StringVar(&opts.configPath, "config", "", "path to the configuration file")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.StringVarP(&opts.formatName, "format", "f", "json", "output format (json, yaml, csv)")
	flags.StringVarP(&opts.outputPath, "output", "o", "", "write output to a file instead of stdout")

	root.AddCommand(newQdrantCmd(opts))
	root.AddCommand(newSolrCmd(opts))

	// Flag and argument parse failures are usage errors, exit code 2.
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", docstore.ErrInvalidInput, err)
	})
	wrapUsageErrors(root)
	return root
}

// wrapUsageErrors stamps argument-validation failures across the whole
// tree with the invalid-input sentinel.
func wrapUsageErrors(cmd *cobra.Command) {
	if validate := cmd.Args; validate != nil {
		cmd.Args = func(c *cobra.Command, args []string) error {
			if err := validate(c, args); err != nil {
				return fmt.Errorf("%w: %v", docstore.ErrInvalidInput, err)
			}
			return nil
		}
	}
	for _, sub := range cmd.Commands() {
		wrapUsageErrors(sub)
	}
}

// run is the shared command harness: load the profile, start tracing,
// build the formatter, run fn, and record the outcome on the span.
func (o *options) run(ctx context.Context, backend, command, collection string, fn func(ctx context.Context, profile *config.Profile, fmtr *format.Formatter) error) error {
	path := o.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	profile, err := config.Load(path, o.profile)
	if err != nil {
		return err
	}
	for _, warning := range profile.Validate() {
		slog.Warn(warning, "profile", o.profile)
	}

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "docstorectl",
		ServiceVersion: "0.1.0",
		OTLPEndpoint:   profile.Tracing.Endpoint,
		SampleRate:     *profile.Tracing.SampleRate,
	})
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		tp = nil
	}
	if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	ctx, span := observability.StartCommandSpan(ctx, backend, command, collection)
	defer span.End()

	outFormat, err := format.Parse(o.formatName)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	out := os.Stdout
	if o.outputPath != "" {
		f, err := os.Create(o.outputPath)
		if err != nil {
			observability.RecordError(span, err)
			return err
		}
		defer f.Close()
		out = f
	}

	err = fn(ctx, profile, format.New(outFormat, out))
	observability.RecordError(span, err)
	return err
}
