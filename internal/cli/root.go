package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/litebatch/internal/config"
	"github.com/roach88/litebatch/internal/metrics"
	"github.com/roach88/litebatch/internal/session"
	"github.com/roach88/litebatch/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Driver     string
	DSN        string
	Dialect    string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the litebatch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "litebatch",
		Short: "litebatch - deferred query batching",
		Long: "Run queries through a litebatch session. Queries queued together are sent\n" +
			"to the database as one command when the dialect supports batching.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (yaml)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database/sql driver (sqlite3|pgx|mysql)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "data source name")
	cmd.PersistentFlags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (inferred from the driver when empty)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))
	cmd.AddCommand(NewPageCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// loadConfig reads the config file and environment, then applies flags.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if o.Driver != "" {
		cfg.Driver = o.Driver
	}
	if o.DSN != "" {
		cfg.DSN = o.DSN
	}
	if o.Dialect != "" {
		cfg.Dialect = o.Dialect
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// runtime is everything a command needs to talk to the database. close
// releases the session and the pool in that order.
type runtime struct {
	session  *session.Session
	gatherer prometheus.Gatherer
	store    *store.Store
}

func (r *runtime) close() error {
	err := r.session.Close()
	if cerr := r.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// release closes r when a command finishes. A close failure becomes the
// command's error when it had none; otherwise it is reported in verbose
// mode next to the error already returned.
func (r *runtime) release(out *OutputFormatter, err *error) {
	cerr := r.close()
	if cerr == nil {
		return
	}
	if *err == nil {
		*err = out.Fail(cerr)
		return
	}
	out.VerboseLog("close: %v", cerr)
}

// openSession builds the store, dialect, logger and metrics from the
// effective config and opens one session.
func (o *RootOptions) openSession(ctx context.Context, logOut io.Writer) (*runtime, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := cfg.NewLogger(logOut)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	d, err := cfg.NewDialect()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	st, err := store.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector()
	if err := collector.Register(reg); err != nil {
		st.Close()
		return nil, WrapExitError(ExitFailure, "failed to register metrics", err)
	}

	factory, err := session.NewFactory(st, d,
		session.WithLogger(logger),
		session.WithMetrics(collector))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitFailure, "failed to create session factory", err)
	}

	s, err := factory.Open(ctx)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open session", err)
	}

	return &runtime{session: s, gatherer: reg, store: st}, nil
}

// reportMetrics writes the collected counters to the diagnostic writer in
// verbose mode.
func reportMetrics(out *OutputFormatter, g prometheus.Gatherer) {
	if !out.Verbose {
		return
	}
	families, err := g.Gather()
	if err != nil {
		out.VerboseLog("metrics unavailable: %v", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf("{%s=%q}", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				out.VerboseLog("%s%s %g", mf.GetName(), labels, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				out.VerboseLog("%s_count%s %d", mf.GetName(), labels, m.GetHistogram().GetSampleCount())
			}
		}
	}
}
