// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides logging and local metrics for calmchat.
//
// # Key Types
//
//   - LogConfig: level and destination for the zerolog logger
//   - Metrics: Prometheus counters for submissions, backend requests,
//     keep-alive pings and the guest quota
//   - Server: an optional chi router serving /metrics and /healthz
//
// # Usage
//
//	logger, closer, err := telemetry.NewLogger(telemetry.LogConfig{Level: "info", File: path})
//	defer closer.Close()
//
//	m := telemetry.NewMetrics()
//	srv := telemetry.NewServer(m, logger)
//	addr, err := srv.Start("127.0.0.1:9464")
//
// # Privacy
//
// Nothing leaves the machine. The metrics server binds where it is told,
// and message text is never logged or counted.
package telemetry
