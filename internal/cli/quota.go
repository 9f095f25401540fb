package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newQuotaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show this period's analysis usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := apiClient.Quota(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get quota: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(q)
			}

			fmt.Fprintf(stdout, "Used:       %d\n", q.Used)
			fmt.Fprintf(stdout, "Limit:      %d\n", q.Limit)
			fmt.Fprintf(stdout, "Remaining:  %d\n", q.Remaining)
			fmt.Fprintf(stdout, "Resets:     %s\n", q.ResetDate.Local().Format(time.RFC1123))
			return nil
		},
	}
}
