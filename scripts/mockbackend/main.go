// Mockbackend is a stand-in model server used for gateway testing.
// It provides /v1/generate and /health endpoints.
//
// Usage:
//
//	go run ./scripts/mockbackend -port 11434 -latency 150ms -failrate 0.1
//
// The server echoes a canned completion after the configured latency and
// fails a configurable fraction of requests with a 500, which is useful for
// exercising retry, fallback, and circuit breaker behavior.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"
)

type generateRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type generateResponse struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
}

func main() {
	var (
		port     = flag.Int("port", 11434, "Port to listen on")
		latency  = flag.Duration("latency", 100*time.Millisecond, "Simulated generation latency")
		failrate = flag.Float64("failrate", 0, "Fraction of requests that fail with 500")
		name     = flag.String("name", "mock", "Server name reported in responses")
	)
	flag.Parse()

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	mux.HandleFunc("/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		time.Sleep(*latency)

		if *failrate > 0 && rand.Float64() < *failrate {
			log.Printf("[%s] injected failure for prompt %q", *name, truncate(req.Prompt, 40))
			http.Error(w, "simulated upstream failure", http.StatusInternalServerError)
			return
		}

		resp := generateResponse{
			Text:       fmt.Sprintf("[%s] completion for: %s", *name, truncate(req.Prompt, 80)),
			TokensUsed: len(req.Prompt)/4 + 20,
		}

		log.Printf("[%s] served prompt %q", *name, truncate(req.Prompt, 40))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("[%s] listening on %s (latency=%s failrate=%.2f)", *name, addr, *latency, *failrate)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
