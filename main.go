// calmchat - a calm terminal chat with an emotion-aware companion.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/muesli/termenv"

	"github.com/jeranaias/calmchat/internal/cli"
	"github.com/jeranaias/calmchat/internal/config"
	"github.com/jeranaias/calmchat/internal/quota"
	"github.com/jeranaias/calmchat/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	loadDotEnv()

	cmd, args := cli.Parse()
	if args.NoColor {
		cli.ForceColorsEnabled(false)
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	if err := run(cmd, args); err != nil {
		cli.HandleErrorAndExit(err, args.JSON)
	}
}

// loadDotEnv reads .env from the working directory, then from the config
// directory. Variables already set win.
func loadDotEnv() {
	_ = godotenv.Load()
	if dir, err := config.ConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(dir, ".env"))
	}
}

func run(cmd cli.Command, args cli.Args) error {
	switch cmd {
	case cli.CmdVersion:
		if args.JSON {
			return cli.NewJSONResponse("version", cli.VersionData{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
			}).Write(os.Stdout)
		}
		cli.PrintVersion()
		return nil

	case cli.CmdHelp:
		if args.Subcommand != "" {
			msg := "unknown command: " + args.Subcommand
			if hint := cli.SuggestCommand(args.Subcommand); hint != "" {
				msg += fmt.Sprintf(" (did you mean %q?)", hint)
			}
			return &cli.UsageError{Message: msg, Example: "calmchat help"}
		}
		cli.PrintUsage()
		return nil

	case cli.CmdConfig:
		return cli.HandleConfig(args)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}

	// SIGINT stays with the terminal UIs; they treat Ctrl+C themselves.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, cli.AppOptions{Verbose: args.Verbose})
	if err != nil {
		return err
	}
	defer app.Close()

	switch cmd {
	case cli.CmdTUI:
		if !cli.IsTTY() || !cli.IsStdoutTTY() {
			return cli.HandleChat(ctx, app, args)
		}
		return runTUI(ctx, app)
	case cli.CmdChat:
		return cli.HandleChat(ctx, app, args)
	case cli.CmdRegister:
		return cli.HandleRegister(ctx, app, args)
	case cli.CmdLogin:
		return cli.HandleLogin(ctx, app, args)
	case cli.CmdLogout:
		return cli.HandleLogout(ctx, app, args)
	case cli.CmdWhoami:
		return cli.HandleWhoami(ctx, app, args)
	case cli.CmdQuota:
		return cli.HandleQuota(ctx, app, args)
	case cli.CmdHistory:
		return cli.HandleHistory(ctx, app, args)
	case cli.CmdStatus:
		return cli.HandleStatus(ctx, app, args)
	default:
		cli.PrintUsage()
		return nil
	}
}

// runTUI runs the full-screen chat until the user quits.
func runTUI(ctx context.Context, app *cli.App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.Themes.Get().Apply()

	// Controller output reaches the program through the presenter, which is
	// bound once the program exists.
	presenter := chat.NewPresenter()
	ctrl, err := app.NewController(presenter)
	if err != nil {
		return err
	}

	m := chat.New(ctx, chat.Config{
		Conversation: ctrl,
		Account:      app.Auth,
		Quota:        app.Quota,
		Themes:       app.Themes,
		WarnAt:       quota.WarnAt,
		Logger:       app.Logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	presenter.Bind(p)

	// Another calmchat process may spend free messages.
	if err := quota.Watch(ctx, app.State, app.Logger, func() {
		p.Send(chat.QuotaChangedMsg{})
	}); err != nil {
		app.Logger.Warn().Err(err).Msg("QUOTA_WATCH_FAILED")
	}

	if addr, err := app.StartBackground(ctx); err != nil {
		app.Logger.Warn().Err(err).Msg("BACKGROUND_START_FAILED")
	} else if addr != "" {
		app.Logger.Info().Str("addr", addr).Msg("METRICS_LISTENING")
	}

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running calmchat: %w", err)
	}
	return nil
}
