package main

import (
	"net/http"

	"github.com/slidewise/modelgate/internal/handler"
	"github.com/slidewise/modelgate/internal/health"
	"github.com/slidewise/modelgate/internal/metrics"
)

func newRouter(generate *handler.GenerateHandler, monitor *health.Monitor, collector *metrics.Collector) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/v1/generate", generate)
	mux.HandleFunc("/health", handler.HealthHandler(monitor))
	mux.HandleFunc("/metrics", collector.Handler())

	return mux
}
