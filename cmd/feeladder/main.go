package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/olekukonko/tablewriter"
)

// Renders the daemon's fee ladder for operators:
//
//	go run ./cmd/feeladder -addr http://localhost:8080 -size 25
type ladderResponse struct {
	Sizes       []float64
	AskFeeBps   []float64
	BidFeeBps   []float64
	ClampFlags  []bool
	SnapshotAge time.Duration
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "quoted base URL")
	size := flag.Float64("size", 10, "base size for the first rung")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Parse()

	client := resty.New().SetBaseURL(*addr).SetTimeout(*timeout)

	var ladder ladderResponse
	resp, err := client.R().
		SetQueryParam("baseSize", fmt.Sprintf("%g", *size)).
		SetResult(&ladder).
		Get("/api/preview/ladder")
	if err != nil {
		log.Fatalf("fetch ladder: %v", err)
	}
	if resp.IsError() {
		log.Fatalf("fetch ladder: %s: %s", resp.Status(), resp.String())
	}

	fmt.Printf("fee ladder (snapshot age %s)\n", ladder.SnapshotAge)
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Size", "Bid bps", "Ask bps", "Clamped")
	for i, s := range ladder.Sizes {
		clamped := ""
		if ladder.ClampFlags[i] {
			clamped = "AOMQ"
		}
		table.Append(
			fmt.Sprintf("%.4f", s),
			fmt.Sprintf("%.2f", ladder.BidFeeBps[i]),
			fmt.Sprintf("%.2f", ladder.AskFeeBps[i]),
			clamped,
		)
	}
	table.Render()
}
