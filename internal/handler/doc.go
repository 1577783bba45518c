// Package handler implements the HTTP surface of the gateway. It coordinates
// admission control, the response cache, and backend orchestration, and maps
// the error taxonomy onto HTTP status codes.
package handler
