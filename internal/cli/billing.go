package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/muscleai/pkg/client"
)

func newPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, err := apiClient.Billing().Plans(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list plans: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(plans)
			}

			t := NewTable("ID", "NAME", "PRICE", "ANALYSES", "FEATURES")
			for _, p := range plans {
				name := p.Name
				if p.IsCurrent {
					name += " (current)"
				}
				t.AddRow(
					p.ID,
					name,
					fmt.Sprintf("%.2f %s/%s", p.Price, p.Currency, p.Interval),
					strconv.Itoa(p.MonthlyQuota)+"/"+p.Interval,
					truncate(strings.Join(p.Features, ", "), 50),
				)
			}
			t.Render()
			return nil
		},
	}
}

func newSubscriptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscription",
		Aliases: []string{"sub"},
		Short:   "Manage your subscription",
	}

	cmd.AddCommand(newSubscriptionShowCmd())
	cmd.AddCommand(newSubscriptionCheckoutCmd())
	cmd.AddCommand(newSubscriptionCancelCmd())

	return cmd
}

func newSubscriptionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := apiClient.Billing().Subscription(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get subscription: %w", err)
			}
			if getOutputFormat() != "table" {
				return printOutput(sub)
			}
			printSubscription(sub)
			return nil
		},
	}
}

func newSubscriptionCheckoutCmd() *cobra.Command {
	var successURL, cancelURL string

	cmd := &cobra.Command{
		Use:   "checkout <plan>",
		Short: "Start a checkout for a plan and print the payment link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := apiClient.Billing().Checkout(context.Background(), client.CheckoutRequest{
				PlanID:     args[0],
				SuccessURL: successURL,
				CancelURL:  cancelURL,
			})
			if err != nil {
				return fmt.Errorf("failed to start checkout: %w", err)
			}
			if getOutputFormat() != "table" {
				return printOutput(sess)
			}
			fmt.Fprintf(stdout, "Complete payment at:\n  %s\n", sess.URL)
			return nil
		},
	}

	cmd.Flags().StringVar(&successURL, "success-url", "", "redirect after payment")
	cmd.Flags().StringVar(&cancelURL, "cancel-url", "", "redirect when checkout is abandoned")

	return cmd
}

func newSubscriptionCancelCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the active subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("cancelling stops further analyses immediately; re-run with --yes to confirm")
			}
			sub, err := apiClient.Billing().Cancel(context.Background())
			if err != nil {
				return fmt.Errorf("failed to cancel subscription: %w", err)
			}
			if getOutputFormat() != "table" {
				return printOutput(sub)
			}
			fmt.Fprintf(stdout, "Subscription %s cancelled\n", sub.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm cancellation")

	return cmd
}

func printSubscription(sub *client.Subscription) {
	fmt.Fprintf(stdout, "Plan:     %s\n", sub.PlanID)
	fmt.Fprintf(stdout, "Status:   %s\n", formatStatus(sub.Status))
	fmt.Fprintf(stdout, "Started:  %s\n", sub.StartedAt.Format("2006-01-02"))
	fmt.Fprintf(stdout, "Ends:     %s\n", sub.EndsAt.Format("2006-01-02"))
	if q := sub.Quota; q != nil {
		fmt.Fprintf(stdout, "Quota:    %d/%d used, resets %s\n", q.Used, q.Limit, q.ResetDate.Format("2006-01-02"))
	}
}
