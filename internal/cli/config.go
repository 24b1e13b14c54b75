// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - The config command: show, path, init, get and set.

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/calmchat/internal/config"
)

// HandleConfig runs a config subcommand.
func HandleConfig(args Args) error {
	return runConfig(os.Stdout, args)
}

func runConfig(w io.Writer, args Args) error {
	switch args.Subcommand {
	case "", "show":
		return configShow(w, args.JSON)
	case "path":
		return configPath(w, args.JSON)
	case "init":
		return configInit(w, args.Force)
	case "get":
		return configGet(w, args.ConfigKey, args.JSON)
	case "set":
		return configSet(w, args.ConfigKey, args.ConfigVal)
	default:
		return &UsageError{
			Message: "unknown config subcommand: " + args.Subcommand,
			Example: "calmchat config set backend.url https://example.com",
		}
	}
}

// configShow prints the effective configuration, environment included.
func configShow(w io.Writer, jsonMode bool) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v (showing defaults)\n", WarningStyle.Render("[WARN]"), err)
	}
	safe := cfg.Redacted()

	if jsonMode {
		return NewJSONResponse("config show", safe).Write(w)
	}

	fmt.Fprintln(w, TitleStyle.Render("calmchat configuration"))
	for _, key := range config.GetAllKeys() {
		val, err := safe.Get(key)
		if err != nil {
			continue
		}
		display := fmt.Sprint(val)
		if display == "" {
			display = DimStyle.Render("(not set)")
		}
		fmt.Fprintf(w, "%s%s\n", LabelStyle.Width(26).Render(key), display)
	}
	return nil
}

func configPath(w io.Writer, jsonMode bool) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	if jsonMode {
		_, statErr := os.Stat(path)
		return NewJSONResponse("config path", map[string]interface{}{
			"path":   path,
			"exists": statErr == nil,
		}).Write(w)
	}
	fmt.Fprintln(w, path)
	return nil
}

// configInit writes the default configuration file.
func configInit(w io.Writer, force bool) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return &UsageError{
			Message: "config file already exists: " + path,
			Example: "calmchat config init --force",
		}
	}
	if err := config.SaveTOML(config.Default(), path); err != nil {
		return NewCommandError("config", "init", "could not write the config file", err)
	}
	fmt.Fprintf(w, "%s wrote %s\n", RenderStatus("ok"), path)
	return nil
}

func configGet(w io.Writer, key string, jsonMode bool) error {
	if key == "" {
		return ErrMissingArgument("key", "calmchat config get backend.url")
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v (showing defaults)\n", WarningStyle.Render("[WARN]"), err)
	}

	val, err := cfg.Redacted().Get(normalizeKey(key))
	if err != nil {
		return &UsageError{Message: err.Error(), Example: "calmchat config get backend.url"}
	}
	if jsonMode {
		return NewJSONResponse("config get", map[string]interface{}{normalizeKey(key): val}).Write(w)
	}
	fmt.Fprintln(w, val)
	return nil
}

// configSet changes one value in the config file. Environment overrides are
// not applied so they never end up saved.
func configSet(w io.Writer, key, value string) error {
	if key == "" {
		return ErrMissingArgument("key", "calmchat config set backend.url https://example.com")
	}
	if value == "" {
		return ErrMissingArgument("value", "calmchat config set "+key+" <value>")
	}
	key = normalizeKey(key)

	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return NewCommandError("config", "set", "the config file could not be read", err)
		}
	}

	if err := cfg.Set(key, value); err != nil {
		return &UsageError{Message: err.Error(), Example: "calmchat config get"}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return NewCommandError("config", "set", "could not write the config file", err)
	}

	shown := value
	if key == "storage.database_url" {
		shown = cfg.Redacted().Storage.DatabaseURL
	}
	fmt.Fprintf(w, "%s %s = %s\n", RenderStatus("ok"), key, shown)
	return nil
}

// normalizeKey accepts BACKEND_URL-style spellings for the first dot.
func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if !strings.Contains(key, ".") {
		key = strings.Replace(key, "_", ".", 1)
	}
	return key
}
