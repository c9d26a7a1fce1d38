// Benchmark replays labelled PaySim transactions against a running FraudGuard
// server and reports how its verdicts compare with the fraud labels.
//
// Usage:
//
//	go run ./cmd/benchmark -csv /path/to/paysim.csv -url http://localhost:8080
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/opensource-finance/fraudguard/internal/api"
	"github.com/opensource-finance/fraudguard/internal/domain"
)

var (
	errUnavailable = errors.New("classifier unavailable")
	errRejected    = errors.New("transaction rejected")
)

func main() {
	csvPath := flag.String("csv", "", "Path to PaySim CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "FraudGuard base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum transactions to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	fraudOnly := flag.Bool("fraud-only", false, "Only test fraud transactions")
	sampleRate := flag.Float64("sample", 1.0, "Sample rate for non-fraud (0.0-1.0)")
	verbose := flag.Bool("verbose", false, "Print each transaction result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/paysim.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        FRAUDGUARD BENCHMARK - PaySim Fraud Detection          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Server URL:  %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Fraud Only:  %v\n", *fraudOnly)
	fmt.Printf("Sample Rate: %.2f\n", *sampleRate)
	fmt.Println()

	client := &http.Client{Timeout: 10 * time.Second}

	if err := checkReady(ctx, client, *baseURL); err != nil {
		fmt.Printf("ERROR: FraudGuard not ready at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure FraudGuard is running:")
		fmt.Println("  go run ./cmd/fraudguard")
		os.Exit(1)
	}
	fmt.Println("✓ FraudGuard is ready")

	fmt.Printf("\nReading PaySim data from %s...\n", *csvPath)
	transactions, skipped, err := ReadPaySimFile(*csvPath, ReadOptions{
		Limit:      *limit,
		FraudOnly:  *fraudOnly,
		SampleRate: *sampleRate,
	})
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d transactions (%d malformed rows skipped)\n", len(transactions), skipped)
	if len(transactions) == 0 {
		os.Exit(0)
	}

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	runner := &Runner{
		Client:   client,
		BaseURL:  *baseURL,
		TenantID: *tenantID,
		Workers:  *workers,
		Verbose:  *verbose,
	}
	res := runner.Run(ctx, transactions)

	printResults(os.Stdout, res, runner.threshold)
}

func checkReady(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/ready", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("not ready: status %d", resp.StatusCode)
	}
	return nil
}

// Runner sends transactions to POST /score concurrently.
type Runner struct {
	Client   *http.Client
	BaseURL  string
	TenantID string
	Workers  int
	Verbose  bool

	mu        sync.Mutex
	threshold float64
}

// Run scores every transaction and aggregates the verdicts. It stops early
// when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, transactions []LabeledTransaction) *Results {
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}

	res := &Results{}
	work := make(chan LabeledTransaction)
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tx := range work {
				began := time.Now()
				resp, err := r.score(ctx, tx.Input)
				elapsed := time.Since(began)

				r.mu.Lock()
				res.Requests++
				res.LatencySum += elapsed
				switch {
				case errors.Is(err, errUnavailable):
					res.Unavailable++
				case errors.Is(err, errRejected):
					res.Rejected++
					if tx.IsFraud {
						res.RejectedFraud++
					}
				case err != nil:
					res.Errors++
				default:
					res.Matrix.Add(resp.Verdict == domain.VerdictFraud, tx.IsFraud)
					r.threshold = resp.Metadata.Threshold
				}
				r.mu.Unlock()

				if r.Verbose {
					r.report(tx, resp, err)
				}
			}
		}()
	}

feed:
	for _, tx := range transactions {
		select {
		case work <- tx:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	res.Duration = time.Since(start)
	return res
}

func (r *Runner) score(ctx context.Context, in domain.TransactionInput) (*api.ScoreResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.TenantIDHeader, r.TenantID)

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return nil, errUnavailable
	case http.StatusBadRequest:
		return nil, errRejected
	default:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result api.ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *Runner) report(tx LabeledTransaction, resp *api.ScoreResponse, err error) {
	if err != nil {
		fmt.Printf("ERROR: %s -> %v\n", tx.NameOrig, err)
		return
	}

	predicted := resp.Verdict == domain.VerdictFraud
	status := "✓"
	if predicted != tx.IsFraud {
		status = "✗"
	}
	name := tx.NameOrig
	if len(name) > 10 {
		name = name[:10]
	}
	fmt.Printf("%s %-10s | Type: %-8s | Amount: $%12.2f | Fraud: %-5v | Verdict: %-5s (%s) | %s\n",
		status,
		name,
		tx.Input.Type,
		tx.Input.Amount,
		tx.IsFraud,
		resp.Verdict,
		resp.Display.Probability,
		resp.Display.Reasons,
	)
}
