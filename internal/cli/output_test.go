package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/pratik-mahalle/muscleai/pkg/client"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"bench press, incline press", 12, "bench pre..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestRatingBar(t *testing.T) {
	tests := []struct {
		rating int
		want   string
	}{
		{0, ".........."},
		{7, "#######..."},
		{10, "##########"},
		{14, "##########"},
		{-2, ".........."},
	}
	for _, tt := range tests {
		if got := ratingBar(tt.rating); got != tt.want {
			t.Errorf("ratingBar(%d) = %q, want %q", tt.rating, got, tt.want)
		}
	}
}

func TestGetOutputFormat(t *testing.T) {
	captureOutput(t)
	t.Cleanup(func() {
		outputFormat = ""
		viper.Set("output", "")
	})

	// A buffer is not a terminal
	if got := getOutputFormat(); got != "json" {
		t.Errorf("piped default = %q, want json", got)
	}

	viper.Set("output", "yaml")
	if got := getOutputFormat(); got != "yaml" {
		t.Errorf("config = %q, want yaml", got)
	}

	outputFormat = "table"
	if got := getOutputFormat(); got != "table" {
		t.Errorf("flag = %q, want table", got)
	}
}

func TestRenderReport(t *testing.T) {
	buf := captureOutput(t)

	renderReport(&client.Analysis{
		Cached: true,
		Report: &client.Report{
			Muscles: []client.MuscleRating{
				{Name: "Chest", Rating: 7, Exercises: []string{"Bench press", "Dips"}},
				{Name: "Shoulders", Rating: 5, Exercises: []string{"Overhead press"}},
			},
			NotVisible: []string{"Calves"},
		},
		Quota: &client.Quota{Used: 3, Limit: 10, Remaining: 7},
	})

	out := buf.String()
	for _, want := range []string{"Chest", "7/10", "#######...", "Bench press, Dips", "Not visible: Calves", "cached result", "7 of 10 analyses left"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderReportFallback(t *testing.T) {
	buf := captureOutput(t)

	renderReport(&client.Analysis{
		Analysis: "Free-form model text",
		Report:   &client.Report{Fallback: true},
	})

	if !strings.Contains(buf.String(), "Free-form model text") {
		t.Errorf("fallback should print the raw analysis, got:\n%s", buf.String())
	}
}

func TestDescribeAnalyzeError(t *testing.T) {
	reset := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "quota exceeded",
			err:  &client.APIError{StatusCode: 403, Code: client.CodeQuotaExceeded, Quota: &client.Quota{Used: 10, Limit: 10, ResetDate: reset}},
			want: "quota used up (10/10, resets Nov 1)",
		},
		{
			name: "no subscription",
			err:  &client.APIError{StatusCode: 403, Code: client.CodeNoActiveSubscription},
			want: "no active subscription",
		},
		{
			name: "rate limited",
			err:  &client.APIError{StatusCode: 429, Code: client.CodeTooManyRequests, RetryAfter: 30},
			want: "retry in 30s",
		},
		{
			name: "low quality",
			err:  &client.APIError{StatusCode: 400, Code: client.CodeImageQualityTooLow, Message: "Image quality too low"},
			want: "Image quality too low",
		},
		{
			name: "transport",
			err:  errors.New("connection refused"),
			want: "analysis failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := describeAnalyzeError(tt.err)
			if !strings.Contains(got.Error(), tt.want) {
				t.Errorf("describeAnalyzeError() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestMaskValue(t *testing.T) {
	if got := maskValue("auth.token", "eyJ..."); got != "(credentials stored)" {
		t.Errorf("token not masked: %q", got)
	}
	if got := maskValue("auth.user_id", "user-1"); got != "user-1" {
		t.Errorf("user_id should be shown, got %q", got)
	}
	if got := maskValue("auth.token", ""); got != "" {
		t.Errorf("empty token = %q", got)
	}
}
