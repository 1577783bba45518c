// Loadtest is a concurrent HTTP load testing tool for the gateway. It
// measures throughput, latency percentiles, cache hit share, and which
// backend served each generation.
//
// Usage:
//
//	go run ./scripts/loadtest -url http://localhost:8080/v1/generate -concurrency 10 -requests 1000
//	go run ./scripts/loadtest -url http://localhost:8080/v1/generate -prompts 50 -out summary.json
//
// Distinct prompts defeat the response cache; lower -prompts to measure the
// cached path instead.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type result struct {
	latency time.Duration
	status  int
	backend string
	cached  bool
	err     error
}

type gatewayResponse struct {
	Backend string `json:"backend"`
	Cached  bool   `json:"cached"`
}

func main() {
	var (
		url         = flag.String("url", "http://localhost:8080/v1/generate", "Target URL")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		requests    = flag.Int("requests", 100, "Total number of requests to send")
		prompts     = flag.Int("prompts", 0, "Number of distinct prompts (0 = all distinct)")
		timeoutSec  = flag.Int("timeout", 30, "Per-request timeout in seconds")
	)

	outJSON := flag.String("out", "", "Write JSON summary to this file (optional)")
	verbose := flag.Bool("v", false, "Verbose per-request logging to stdout")
	flag.Parse()

	client := &http.Client{Timeout: time.Duration(*timeoutSec) * time.Second}

	jobs := make(chan int)
	results := make(chan result, *requests)

	var inFlight atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				promptID := i
				if *prompts > 0 {
					promptID = i % *prompts
				}

				body, _ := json.Marshal(map[string]any{
					"prompt": fmt.Sprintf("summarize document %d in one sentence", promptID),
				})

				inFlight.Add(1)
				start := time.Now()
				resp, err := client.Post(*url, "application/json", bytes.NewReader(body))
				elapsed := time.Since(start)
				inFlight.Add(-1)

				r := result{latency: elapsed, err: err}
				if err == nil {
					r.status = resp.StatusCode
					var gw gatewayResponse
					data, _ := io.ReadAll(resp.Body)
					resp.Body.Close()
					if json.Unmarshal(data, &gw) == nil {
						r.backend = gw.Backend
						r.cached = gw.Cached
					}
				}

				if *verbose {
					fmt.Printf("req=%d status=%d latency=%s backend=%s cached=%t err=%v\n",
						i, r.status, r.latency, r.backend, r.cached, r.err)
				}

				results <- r
			}
		}()
	}

	startAll := time.Now()
	go func() {
		for i := 0; i < *requests; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	wg.Wait()
	close(results)
	totalElapsed := time.Since(startAll)

	var (
		latencies  []time.Duration
		failures   int
		rateLimits int
		cacheHits  int
		byBackend  = make(map[string]int)
	)

	for r := range results {
		if r.err != nil || r.status >= 500 {
			failures++
			continue
		}
		if r.status == http.StatusTooManyRequests {
			rateLimits++
			continue
		}
		latencies = append(latencies, r.latency)
		if r.cached {
			cacheHits++
		}
		if r.backend != "" {
			byBackend[r.backend]++
		}
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	summary := map[string]any{
		"requests":     *requests,
		"concurrency":  *concurrency,
		"duration_ms":  totalElapsed.Milliseconds(),
		"rps":          float64(len(latencies)) / totalElapsed.Seconds(),
		"failures":     failures,
		"rate_limited": rateLimits,
		"cache_hits":   cacheHits,
		"by_backend":   byBackend,
		"p50_ms":       percentile(latencies, 0.50).Milliseconds(),
		"p90_ms":       percentile(latencies, 0.90).Milliseconds(),
		"p95_ms":       percentile(latencies, 0.95).Milliseconds(),
		"p99_ms":       percentile(latencies, 0.99).Milliseconds(),
	}

	encoded, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(encoded))

	if *outJSON != "" {
		if err := os.WriteFile(*outJSON, encoded, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "failed to write summary:", err)
			os.Exit(1)
		}
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
