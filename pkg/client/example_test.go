package client_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/pratik-mahalle/muscleai/pkg/client"
)

// Example demonstrates uploading a photo for analysis
func Example() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
		Token:   "<jwt>",
	})

	result, err := c.AnalyzeFile(context.Background(), "front.jpg")
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.IsQuotaExceeded() {
			fmt.Printf("Quota used up, resets %s\n", apiErr.Quota.ResetDate)
			return
		}
		log.Fatal(err)
	}

	for _, m := range result.Report.Muscles {
		fmt.Printf("%s: %d/10\n", m.Name, m.Rating)
	}
}

// ExampleClient_Quota demonstrates reading usage without spending any
func ExampleClient_Quota() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
		UserID:  "user-123",
	})

	q, err := c.Quota(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%d of %d analyses left\n", q.Remaining, q.Limit)
}
