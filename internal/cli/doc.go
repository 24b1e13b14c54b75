// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI commands for
// calmchat.
//
// # Key Types
//
//   - Command: the commands ParseArgs recognizes
//   - Args: global and command-specific flags
//   - App: the components one process wires together from configuration
//   - REPL: the line-oriented chat used by "calmchat chat"
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdChat:
//	    app, err := cli.NewApp(ctx, cfg, cli.AppOptions{Verbose: args.Verbose})
//	    ...
//	    return cli.HandleChat(ctx, app, args)
//	}
//
// Commands that support --json print a JSONResponse envelope on stdout.
package cli
