package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/litebatch/internal/mapping"
	"github.com/roach88/litebatch/internal/session"
	"github.com/roach88/litebatch/internal/sqlquery"
)

// PageOptions holds flags for the page command.
type PageOptions struct {
	*RootOptions
	Page int
	Size int
}

// PageResult is the JSON shape of a page.
type PageResult struct {
	sqlquery.Page[mapping.Record]
	TotalPages int64 `json:"total_pages"`
	More       bool  `json:"more_results_available"`
}

// NewPageCommand creates the page command.
func NewPageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "page <sql> [args...]",
		Short: "Run one page of a query together with its total count",
		Long: `Rewrite the query into a count query and a page query, queue both,
and drain them together.

The query should carry an ORDER BY so pages are stable.`,
		Example: `  litebatch page --dsn shop.db --page 2 --size 25 "SELECT * FROM Customers ORDER BY Id"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPage(cmd, opts, args)
		},
	}

	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number (1-based)")
	cmd.Flags().IntVar(&opts.Size, "size", 25, "rows per page")

	return cmd
}

func runPage(cmd *cobra.Command, opts *PageOptions, args []string) (err error) {
	out := opts.formatter(cmd)

	paging, err := sqlquery.ForPage(opts.Page, opts.Size)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid paging", err)
	}

	rt, err := opts.openSession(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.release(out, &err)

	page, err := session.Paged[mapping.Record](cmd.Context(), rt.session,
		sqlquery.New(args[0], parseArgs(args[1:])...), paging)
	if err != nil {
		return out.Fail(err)
	}

	reportMetrics(out, rt.gatherer)

	if out.Format == "json" {
		return out.Success(PageResult{
			Page:       page,
			TotalPages: page.TotalPages(),
			More:       page.MoreResultsAvailable(),
		})
	}
	if err := out.Records(page.Items); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out.Writer, "page %d of %d (%d results)\n",
		page.Page, page.TotalPages(), page.TotalResults)
	return err
}
