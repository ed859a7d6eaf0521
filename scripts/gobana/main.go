package main

import (
	"TrialStats/internal/writer"
	"fmt"
	"log"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/gobana/main.go <report.dat>")
		os.Exit(1)
	}

	report, err := writer.ReadReport(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to decode gob data: %v", err)
	}

	fmt.Printf("Decoded report for %s:\n", report.Protocol)
	if err := writer.WriteReportText(os.Stdout, report); err != nil {
		log.Fatalf("Failed to print report: %v", err)
	}
}
