// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - The status command: backend reachability and local setup.

package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jeranaias/calmchat/internal/config"
	"github.com/jeranaias/calmchat/internal/storage"
)

// HealthChecker probes the backend.
type HealthChecker interface {
	Health(ctx context.Context) error
	BaseURL() string
}

// HandleStatus prints backend, account, quota and storage status.
func HandleStatus(ctx context.Context, app *App, args Args) error {
	cmd := newAccountCmd(app, args)
	data := collectStatus(ctx, app.Backend, cmd, app.Config)
	return writeStatus(os.Stdout, data, args.JSON)
}

func collectStatus(ctx context.Context, hc HealthChecker, acct *accountCmd, cfg *config.Config) StatusData {
	var data StatusData

	data.Backend = checkBackend(ctx, hc)
	data.Account = acct.currentUser(ctx)
	if q, err := acct.quotaData(ctx); err == nil {
		data.Quota = q
	}

	data.Storage = StatusStorageInfo{Driver: cfg.Storage.Driver}
	switch cfg.Storage.Driver {
	case storage.DriverSQLite:
		data.Storage.Target, _ = cfg.SQLitePath()
	case storage.DriverPostgres:
		data.Storage.Target = hostOf(cfg.Storage.DatabaseURL)
	}

	if path, err := config.ConfigPathTOML(); err == nil {
		data.Config = path
	}
	return data
}

// checkBackend runs one health request and times it.
func checkBackend(ctx context.Context, hc HealthChecker) StatusBackendInfo {
	info := StatusBackendInfo{URL: hc.BaseURL()}
	start := time.Now()
	err := hc.Health(ctx)
	info.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Reachable = true
	return info
}

// hostOf returns the host of a connection string without credentials.
func hostOf(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil || u.Host == "" {
		return "(configured)"
	}
	return u.Host
}

func writeStatus(w io.Writer, data StatusData, jsonMode bool) error {
	if jsonMode {
		return NewJSONResponse("status", data).Write(w)
	}

	fmt.Fprintln(w, TitleStyle.Render("calmchat status"))
	fmt.Fprintln(w, RenderSeparator())

	backendState := RenderStatus("ok") + " reachable (" + strconv.FormatInt(data.Backend.LatencyMs, 10) + "ms)"
	if !data.Backend.Reachable {
		backendState = RenderStatus("fail") + " " + data.Backend.Error
	}
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Backend:"), ValueStyle.Render(data.Backend.URL))
	fmt.Fprintf(w, "%s%s\n", RenderLabel(""), backendState)

	if data.Account.SignedIn {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Account:"), SuccessStyle.Render(data.Account.Email))
	} else {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Account:"), DimStyle.Render("guest"))
		fmt.Fprintf(w, "%s%d of %d free messages left\n", RenderLabel("Quota:"), data.Quota.Remaining, data.Quota.Limit)
	}

	target := data.Storage.Target
	if target == "" {
		target = "history is not saved"
	}
	fmt.Fprintf(w, "%s%s (%s)\n", RenderLabel("History:"), data.Storage.Driver, target)
	if data.Config != "" {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Config:"), DimStyle.Render(data.Config))
	}
	return nil
}
