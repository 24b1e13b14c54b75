// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing for calmchat.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/jeranaias/calmchat/internal/quota"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdRegister
	CmdLogin
	CmdLogout
	CmdWhoami
	CmdQuota
	CmdHistory
	CmdStatus
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdRegister:
		return "register"
	case CmdLogin:
		return "login"
	case CmdLogout:
		return "logout"
	case CmdWhoami:
		return "whoami"
	case CmdQuota:
		return "quota"
	case CmdHistory:
		return "history"
	case CmdStatus:
		return "status"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool // Output in JSON format
	NoColor bool

	// Command-specific
	Email      string
	Subcommand string
	ConfigKey  string
	ConfigVal  string
	Limit      int
	Force      bool

}

const usageText = `calmchat - a calm place to talk things through

calmchat chats with the emotion-aware backend. Guests get %d free
messages; sign in to keep chatting and to keep your history.

Usage:
  calmchat                      Start the full-screen chat (default)
  calmchat chat                 Line-oriented chat in the terminal
  calmchat register [--email]   Create an account
  calmchat login [--email]      Sign in (resets the guest counter)
  calmchat logout               Sign out
  calmchat whoami               Show who is signed in
  calmchat quota                Show free messages left
  calmchat history [--limit N]  Show your recent saved messages
  calmchat status, s            Check the backend and local setup
  calmchat config [subcommand]  Configuration
  calmchat version              Show version
  calmchat help                 Show this help

Config Commands:
  calmchat config show          Show the effective configuration
  calmchat config path          Show the config file location
  calmchat config init [--force]  Write a default config file
  calmchat config get KEY       Show one value (e.g. backend.url)
  calmchat config set KEY VALUE Change one value

Chat Keys (full-screen):
  Enter      Send          Ctrl+N  New chat
  Ctrl+T     Theme         Ctrl+L  Sign in
  Ctrl+O     Sign out      Ctrl+C  Quit

Global Flags:
  -q, --quiet       Less output
  -v, --verbose     Debug logging
  --json            JSON output (status, whoami, quota, history, config)
  --no-color        Disable colors

Environment:
  CALMCHAT_HOME             Config directory (default ~/.calmchat)
  CALMCHAT_CONFIG           Read configuration from this file instead
  CALMCHAT_BACKEND_URL      Backend base URL
  DATABASE_URL              Postgres connection string for chat history
  NO_COLOR                  Disable colors

Version: %s
`

// PrintUsage prints the usage text.
func PrintUsage() {
	FprintUsage(os.Stdout)
}

// FprintUsage writes the usage text to w.
func FprintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, quota.FreeLimit, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("calmchat version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
	fmt.Printf("  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses args (without the program name) and returns the command
// and its arguments.
func ParseArgs(args []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(args)

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	p := NewArgParser(remaining)

	switch cmd {
	case "tui":
		return CmdTUI, parsedArgs

	case "chat", "repl":
		return CmdChat, parsedArgs

	case "register", "signup":
		parsedArgs.Email = p.Flag("email")
		return CmdRegister, parsedArgs

	case "login", "signin":
		parsedArgs.Email = p.Flag("email")
		return CmdLogin, parsedArgs

	case "logout", "signout":
		return CmdLogout, parsedArgs

	case "whoami":
		return CmdWhoami, parsedArgs

	case "quota":
		return CmdQuota, parsedArgs

	case "history":
		parsedArgs.Limit = p.FlagIntOrDefault("limit", 0)
		return CmdHistory, parsedArgs

	case "status", "s":
		return CmdStatus, parsedArgs

	case "config":
		parsedArgs.Subcommand = p.Subcommand()
		parsedArgs.ConfigKey = p.Positional(1)
		parsedArgs.ConfigVal = strings.Join(p.PositionalFrom(2), " ")
		parsedArgs.Force = p.BoolFlag("force")
		return CmdConfig, parsedArgs

	case "version", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		parsedArgs.Subcommand = cmd
		return CmdHelp, parsedArgs
	}
}

// parseGlobalFlags extracts flags valid for every command.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	for _, arg := range args {
		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--no-color":
			parsedArgs.NoColor = true
		default:
			remaining = append(remaining, arg)
		}
	}

	return remaining, parsedArgs
}
