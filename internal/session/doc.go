// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs the chat submission state machine.
//
// A Controller takes user input through Idle, Validating, AwaitingBackend and
// Settling. Guests are checked against the free-message quota before the
// backend is contacted; a completed exchange either charges the quota (guest)
// or is persisted (signed-in user), never both. The user's message is shown
// before the network round trip and a pending indicator covers the wait.
//
// Rendering goes through the Presenter port, so the controller can be driven
// from the TUI, the REPL or a test double.
//
// # Usage
//
//	ctrl, err := session.NewController(session.Config{
//	    Gateway:   client,
//	    Quota:     tracker,
//	    Auth:      provider,
//	    Store:     store,
//	    Presenter: view,
//	})
//	res := ctrl.Submit(ctx, line)
//	if res.Outcome == session.OutcomeBlocked {
//	    // prompt for login
//	}
package session
