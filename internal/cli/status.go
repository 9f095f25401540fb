package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server health and your usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			health, healthErr := apiClient.Health(ctx)
			authenticated := apiClient.GetToken() != "" || viper.GetString("auth.user_id") != ""

			if getOutputFormat() != "table" {
				summary := map[string]interface{}{}
				if healthErr == nil {
					summary["server"] = health
				} else {
					summary["server"] = map[string]string{"status": "unavailable", "error": healthErr.Error()}
				}
				if authenticated {
					if q, err := apiClient.Quota(ctx); err == nil {
						summary["quota"] = q
					}
					if sub, err := apiClient.Billing().Subscription(ctx); err == nil {
						summary["subscription"] = sub
					}
				}
				return printOutput(summary)
			}

			fmt.Fprintln(stdout, "MuscleAI Status")
			fmt.Fprintln(stdout, strings.Repeat("=", 40))

			if healthErr != nil {
				fmt.Fprintf(stdout, "  Server:        %s (%v)\n", formatStatus("unavailable"), healthErr)
				return nil
			}
			fmt.Fprintf(stdout, "  Server:        %s (version %s)\n", formatStatus(health.Status), health.Version)

			if !authenticated {
				fmt.Fprintln(stdout, "  Account:       not logged in")
				return nil
			}

			sub, err := apiClient.Billing().Subscription(ctx)
			if err != nil {
				fmt.Fprintf(stdout, "  Subscription:  (error: %v)\n", err)
			} else {
				fmt.Fprintf(stdout, "  Subscription:  %s, %s until %s\n", sub.PlanID, formatStatus(sub.Status), sub.EndsAt.Format("2006-01-02"))
			}

			q, err := apiClient.Quota(ctx)
			if err != nil {
				fmt.Fprintf(stdout, "  Quota:         (error: %v)\n", err)
			} else {
				fmt.Fprintf(stdout, "  Quota:         %d of %d left, resets %s\n", q.Remaining, q.Limit, q.ResetDate.Format("2006-01-02"))
			}

			return nil
		},
	}
}
