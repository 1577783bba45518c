// Package provider defines the transport contract to generative-model
// backends and an HTTP implementation of it. The orchestrator only sees the
// Invoker interface, so tests substitute fakes freely.
package provider
