// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the conversation backend.
//
// The backend exposes three endpoints: POST /chat, POST /reset and
// GET /health. The client wraps them with a bounded timeout and maps every
// failure onto a *ClientError with an ErrorType.
//
// # Key Types
//
//   - Client: HTTP client with a resettable cookie jar
//   - ChatResult: Decoded reply with emotion analysis and backend history
//   - ClientError: Typed error (timeout, connection, http status, invalid response)
//
// # Usage
//
//	client := backend.NewClientWithConfig(&backend.ClientConfig{
//	    BaseURL: "http://127.0.0.1:5000",
//	    Timeout: 30 * time.Second,
//	})
//	res, err := client.Send(ctx, "I feel anxious today")
//	if backend.IsTimeout(err) {
//	    // show a notice, the UI stays usable
//	}
package backend
