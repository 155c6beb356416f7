package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/litebatch/internal/session"
	"github.com/roach88/litebatch/internal/sqlquery"
)

// NewQueryCommand creates the query command: one statement, run immediately.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql> [args...]",
		Short: "Run one query and print its rows",
		Long: `Run one query and print every row.

Arguments after the SQL bind to its parameters in order. Integers and
floats are passed as numbers, "null" as NULL, anything else as text.`,
		Example: `  litebatch query --dsn shop.db "SELECT * FROM Customers WHERE Status = ?" 1`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			out := rootOpts.formatter(cmd)

			rt, err := rootOpts.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.release(out, &err)

			records, err := session.Projection(cmd.Context(), rt.session,
				sqlquery.New(args[0], parseArgs(args[1:])...))
			if err != nil {
				return out.Fail(err)
			}

			reportMetrics(out, rt.gatherer)
			return out.Records(records)
		},
	}
}

// parseArgs converts command-line parameter values.
func parseArgs(raw []string) []any {
	values := make([]any, len(raw))
	for i, s := range raw {
		values[i] = parseArg(s)
	}
	return values
}

func parseArg(s string) any {
	if strings.EqualFold(s, "null") {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
