package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/muscleai/pkg/client"
)

func newAnalyzeCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Upload a physique photo for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			result, err := apiClient.AnalyzeFile(ctx, args[0])
			if err != nil {
				return describeAnalyzeError(err)
			}

			if getOutputFormat() != "table" {
				return printOutput(result)
			}

			if raw || result.Report == nil {
				fmt.Fprintln(stdout, result.Analysis)
				return nil
			}

			renderReport(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print the model's text instead of the rating table")

	return cmd
}

func renderReport(result *client.Analysis) {
	if result.Report.Fallback {
		fmt.Fprintln(stdout, "The analysis could not be structured; showing the model's text.")
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, result.Analysis)
		return
	}

	t := NewTable("MUSCLE", "RATING", "", "EXERCISES")
	for _, m := range result.Report.Muscles {
		t.AddRow(
			m.Name,
			strconv.Itoa(m.Rating)+"/10",
			ratingBar(m.Rating),
			truncate(strings.Join(m.Exercises, ", "), 60),
		)
	}
	t.Render()

	if len(result.Report.NotVisible) > 0 {
		fmt.Fprintf(stdout, "\nNot visible: %s\n", strings.Join(result.Report.NotVisible, ", "))
	}

	var notes []string
	if result.Cached {
		notes = append(notes, "cached result")
	}
	if result.Model != "" {
		notes = append(notes, "model "+result.Model)
	}
	if q := result.Quota; q != nil {
		notes = append(notes, fmt.Sprintf("%d of %d analyses left", q.Remaining, q.Limit))
	}
	if len(notes) > 0 {
		fmt.Fprintf(stdout, "\n(%s)\n", strings.Join(notes, ", "))
	}
}

// describeAnalyzeError turns the quota and rate limit rejections into actionable messages
func describeAnalyzeError(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("analysis failed: %w", err)
	}

	switch {
	case apiErr.IsQuotaExceeded():
		msg := "monthly analysis quota used up"
		if apiErr.Quota != nil {
			msg += fmt.Sprintf(" (%d/%d, resets %s)", apiErr.Quota.Used, apiErr.Quota.Limit, apiErr.Quota.ResetDate.Format("Jan 2"))
		}
		return fmt.Errorf("%s. Run 'muscleai plans' to upgrade", msg)
	case apiErr.Code == client.CodeNoActiveSubscription:
		return fmt.Errorf("no active subscription. Run 'muscleai plans' to pick one")
	case apiErr.IsRateLimited():
		wait := time.Duration(apiErr.RetryAfter) * time.Second
		if wait <= 0 {
			return fmt.Errorf("too many analyses, slow down")
		}
		return fmt.Errorf("too many analyses, retry in %s", wait)
	case apiErr.Code == client.CodeImageQualityTooLow:
		return fmt.Errorf("%s", apiErr.Message)
	}
	return fmt.Errorf("analysis failed: %w", err)
}
