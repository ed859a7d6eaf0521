package main

import (
	"TrialStats/internal/config"
	"TrialStats/internal/query"
	"TrialStats/internal/writer"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	mode := flag.String("mode", "api", "Query mode: 'api' (HTTP), 'grpc', or 'history' (ClickHouse directly).")
	protocol := flag.String("protocol", "", "The protocol to query. Empty lists the protocols (api and grpc modes).")
	httpAddr := flag.String("http", "http://localhost:8080", "Base URL of the HTTP API.")
	grpcAddr := flag.String("addr", "localhost:9090", "The gRPC server address.")
	condition := flag.String("condition", "", "Restrict history to one condition.")
	limit := flag.Int("limit", 20, "Maximum number of history rows.")
	chHost := flag.String("ch-host", "localhost", "ClickHouse host (history mode).")
	chPort := flag.Int("ch-port", 9000, "ClickHouse port (history mode).")
	flag.Parse()

	log.Printf("Running in '%s' mode.", *mode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch *mode {
	case "api":
		queryViaAPI(*httpAddr, *protocol)
	case "grpc":
		queryViaGRPC(ctx, *grpcAddr, *protocol)
	case "history":
		if *protocol == "" {
			log.Fatal("Error: -protocol flag is required for history mode")
		}
		queryHistory(ctx, config.ClickHouseConfig{
			Host:     *chHost,
			Port:     *chPort,
			Database: "default",
			Username: "default",
			Password: os.Getenv(config.EnvClickHousePassword),
		}, *protocol, *condition, *limit)
	default:
		log.Fatalf("Invalid mode: %s. Use 'api', 'grpc' or 'history'.", *mode)
	}
}

func queryViaAPI(base, protocol string) {
	url := base + "/api/v1/protocols"
	if protocol != "" {
		url = base + "/api/v1/reports/" + protocol
	}
	log.Printf("Sending request to %s", url)

	resp, err := http.Get(url)
	if err != nil {
		log.Fatalf("Error sending request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("API returned non-200 status code: %d\nResponse: %s", resp.StatusCode, string(respBody))
	}

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, respBody, "", "  "); err != nil {
		log.Printf("Could not prettify JSON, printing raw response:")
		fmt.Println(string(respBody))
		return
	}
	log.Println("---")
	fmt.Println(prettyJSON.String())
}

func queryViaGRPC(ctx context.Context, addr, protocol string) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	defer conn.Close()

	if protocol == "" {
		protocols, err := query.ListProtocols(ctx, conn)
		if err != nil {
			log.Fatalf("could not list protocols: %v", err)
		}
		for _, p := range protocols {
			fmt.Println(p)
		}
		return
	}

	report, err := query.GetReport(ctx, conn, protocol)
	if err != nil {
		log.Fatalf("could not get report: %v", err)
	}
	if err := writer.WriteReportText(os.Stdout, report); err != nil {
		log.Fatalf("could not print report: %v", err)
	}
}

func queryHistory(ctx context.Context, cfg config.ClickHouseConfig, protocol, condition string, limit int) {
	q, err := query.NewClickHouseQuerier(cfg)
	if err != nil {
		log.Fatalf("Error connecting to ClickHouse: %v", err)
	}
	log.Println("Successfully connected to ClickHouse.")

	points, err := q.History(ctx, protocol, condition, limit)
	if err != nil {
		log.Fatalf("Error executing query: %v", err)
	}
	if len(points) == 0 {
		log.Println("No data found for the specified criteria.")
		return
	}

	log.Println("--- History (Direct) ---")
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Timestamp\tBatch\tCondition\tRuns\tLoss\tOverhead")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f%%\t%.2f%%\n",
			p.Timestamp.Format(time.RFC3339), p.BatchID, p.Condition, p.Runs, p.Loss*100, p.Overhead*100)
	}
	tw.Flush()
}
