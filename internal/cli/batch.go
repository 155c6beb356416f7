package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/litebatch/internal/mapping"
	"github.com/roach88/litebatch/internal/session"
	"github.com/roach88/litebatch/internal/sqlquery"
)

// BatchResult is the JSON shape of one statement's rows.
type BatchResult struct {
	Query string           `json:"query"`
	Rows  []mapping.Record `json:"rows"`
}

// NewBatchCommand creates the batch command: several statements queued on
// one session and drained together.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <sql>...",
		Short: "Queue several queries and run them in as few commands as possible",
		Long: `Queue every statement on one session, then drain the queue once.

Dialects with batched query support send all statements in one command;
the others run them one at a time in order. Use -v to see how many
commands were executed.`,
		Example: `  litebatch batch --driver mysql --dsn "$DSN" "SELECT * FROM Customers" "SELECT COUNT(*) FROM Invoices"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			out := rootOpts.formatter(cmd)

			rt, err := rootOpts.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.release(out, &err)

			futures := make([]*session.Future[[]mapping.Record], len(args))
			for i, text := range args {
				f, err := session.IncludeMany[mapping.Record](rt.session, sqlquery.New(text))
				if err != nil {
					return out.Fail(err)
				}
				futures[i] = f
			}

			out.VerboseLog("draining %d queries", rt.session.Pending())
			if err := rt.session.Drain(cmd.Context()); err != nil {
				return out.Fail(err)
			}

			results := make([]BatchResult, len(args))
			for i, f := range futures {
				rows, err := f.Value(cmd.Context())
				if err != nil {
					return out.Fail(err)
				}
				results[i] = BatchResult{Query: args[i], Rows: rows}
			}

			reportMetrics(out, rt.gatherer)

			if out.Format == "json" {
				return out.Success(results)
			}
			for i, r := range results {
				if i > 0 {
					fmt.Fprintln(out.Writer)
				}
				fmt.Fprintf(out.Writer, "-- %s\n", r.Query)
				if err := out.Records(r.Rows); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
