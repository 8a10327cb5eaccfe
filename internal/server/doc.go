// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package server hosts the HTTP services. It builds a chi router with
// request logging, panic recovery and per-route Prometheus metrics, serves
// /metrics from a private registry and shuts down gracefully when its
// context ends.
package server
