// Package backend models one candidate generative-model backend: its
// identity, declared priority and capability limits, and rolling performance
// metrics updated on every completed call.
//
// Each Backend owns its own mutex; different backends never contend.
package backend
