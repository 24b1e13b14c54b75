// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the calmchat terminal UI.

The package implements the chat and login screens with the Bubble Tea
framework and adapts the session controller's presenter port to Bubble Tea
messages.

# Key Components

## Model (model.go)

The Model holds the visible transcript, the input line, the typing
indicator, the current notice and the status bar state (who is signed in,
guest messages left). Submissions, new chats and account actions run as
commands so Update never blocks.

## Presenter (presenter.go)

Presenter implements session.Presenter by sending messages into the running
program. Build it first, hand it to the controller, then Bind it to the
program:

	presenter := chat.NewPresenter()
	ctrl, _ := session.NewController(session.Config{Presenter: presenter, ...})
	p := tea.NewProgram(chat.New(ctx, chat.Config{Conversation: ctrl, ...}), tea.WithAltScreen())
	presenter.Bind(p)

## Login screen (login.go)

A blocked submission switches to the login screen. Ctrl+R toggles between
sign-in and registration; registering does not sign in.

# Key Bindings

	Enter   send (ignored while a reply is pending)
	Ctrl+N  new chat
	Ctrl+T  toggle dark/light theme
	Ctrl+L  sign in
	Ctrl+O  sign out
	Esc     quit (back to chat on the login screen)
*/
package chat
