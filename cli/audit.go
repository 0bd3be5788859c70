package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/billbatista/acasinha-splits/database"
	"github.com/billbatista/acasinha-splits/eventlogger"
	"github.com/spf13/cobra"
)

type auditOptions struct {
	eventType string
	limit     int
	asJSON    bool
}

func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &auditOptions{}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recorded audit events of a type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.eventType == "" {
				return fmt.Errorf("--type is required")
			}
			if opts.limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			cfg := rootOpts.cfg
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			db, err := database.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			events, err := eventlogger.NewSqlEventLogger(db).GetByType(cmd.Context(), opts.eventType, opts.limit)
			if err != nil {
				return fmt.Errorf("reading audit events: %w", err)
			}
			return printEvents(cmd.OutOrStdout(), events, opts.asJSON)
		},
	}

	cmd.Flags().StringVar(&opts.eventType, "type", "", "event type, e.g. payment.recorded")
	cmd.Flags().IntVar(&opts.limit, "limit", 50, "maximum number of events")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print one JSON object per line")

	return cmd
}

func printEvents(w io.Writer, events []eventlogger.Event, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tTYPE\tACTOR\tDATA")
	for _, e := range events {
		data, err := json.Marshal(e.Data)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Type, e.Metadata["actor"], data)
	}
	return tw.Flush()
}
