// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Credential management commands.
//
// Usage:
//
//	shraga auth status              Show the credential and signed-in user
//	shraga auth set [CREDENTIAL]    Store a credential (prompts when omitted)
//	  --no-verify                   Store without asking the server
//	shraga auth clear               Remove the stored credential
//
// A credential without a scheme is stored as a Bearer token.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/jeranaias/shraga-tui/internal/api"
	"github.com/jeranaias/shraga-tui/internal/credential"
)

// HandleAuth handles "shraga auth".
func HandleAuth(ctx context.Context, app *App, args Args) error {
	p := NewArgParser(args.Raw, "no-verify", "json")
	jsonMode := args.JSON || p.BoolFlag("json")

	switch p.Subcommand() {
	case "", "status", "whoami":
		return authStatus(ctx, app, jsonMode)
	case "set", "login":
		return authSet(ctx, app, strings.Join(p.PositionalFrom(1), " "), !p.BoolFlag("no-verify"), jsonMode)
	case "clear", "logout":
		return authClear(app, jsonMode)
	default:
		return NewValidationErrorWithExample("subcommand", p.Subcommand(),
			"unknown auth subcommand", "shraga auth status|set|clear")
	}
}

// credentialSource names where the active credential comes from.
func credentialSource(app *App) string {
	switch s := app.Store.(type) {
	case credential.Static:
		return "SHRAGA_AUTH"
	case *credential.SQLiteStore:
		return s.Path()
	default:
		return "memory"
	}
}

// =============================================================================
// STATUS
// =============================================================================

func authStatus(ctx context.Context, app *App, jsonMode bool) error {
	data := AuthStatusData{Source: credentialSource(app)}

	cred, err := app.Store.Credential()
	if err != nil {
		return NewCommandError("auth", "status", "read credential", err)
	}
	if cred != "" {
		info := credential.Inspect(cred)
		data.Credential = credential.Mask(cred)
		data.Scheme = info.Scheme
		data.Subject = info.Subject
		data.ExpiresAt = info.ExpiresAt
		data.Expired = info.Expired(now())

		rctx, cancel := app.requestContext(ctx)
		user, err := app.Client.WhoAmI(rctx)
		cancel()
		if err != nil {
			data.Error = err.Error()
		} else {
			data.Authenticated = true
			data.User = user.DisplayName
			data.Roles = user.Roles
			data.ServerVersion = user.Version
		}
	}

	if jsonMode {
		return NewJSONResponse("auth status", data).Write(app.Out)
	}

	app.println(TitleStyle.Render("Authentication"))
	app.printf("%s%s\n", RenderLabel("Source:"), data.Source)
	if cred == "" {
		app.printf("%s%s\n", RenderLabel("Credential:"), WarningStyle.Render("none"))
		app.println(DimStyle.Render("Run 'shraga auth set' to store one."))
		return nil
	}
	app.printf("%s%s\n", RenderLabel("Credential:"), data.Credential)
	if data.Subject != "" {
		app.printf("%s%s\n", RenderLabel("Subject:"), data.Subject)
	}
	if !data.ExpiresAt.IsZero() {
		exp := data.ExpiresAt.Local().Format(time.RFC1123)
		if data.Expired {
			exp = ErrorStyle.Render(exp + " (expired)")
		}
		app.printf("%s%s\n", RenderLabel("Token expires:"), exp)
	}
	if store, ok := app.Store.(*credential.SQLiteStore); ok {
		if at, found, err := store.ExpiresAt(); err == nil && found {
			app.printf("%s%s\n", RenderLabel("Stored until:"), at.Local().Format(time.RFC1123))
		}
	}

	if !data.Authenticated {
		app.printf("%s%s %s\n", RenderLabel("Server:"), RenderStatus("fail"), data.Error)
		return nil
	}
	app.printf("%s%s %s\n", RenderLabel("Server:"), RenderStatus("ok"), data.User)
	if len(data.Roles) > 0 {
		app.printf("%s%s\n", RenderLabel("Roles:"), strings.Join(data.Roles, ", "))
	}
	if data.ServerVersion != "" {
		app.printf("%s%s\n", RenderLabel("Server version:"), data.ServerVersion)
	}
	return nil
}

// =============================================================================
// SET / CLEAR
// =============================================================================

// normalizeCredential trims cred and adds the Bearer scheme when none is
// given.
func normalizeCredential(cred string) string {
	cred = strings.TrimSpace(cred)
	if cred == "" || strings.Contains(cred, " ") {
		return cred
	}
	return "Bearer " + cred
}

// readSecret prompts for a credential without echo.
func readSecret(app *App) (string, error) {
	if err := RequiresTTY("read a credential"); err != nil {
		return "", err
	}
	fmt.Fprint(app.Err, "Credential (e.g. Bearer eyJ...): ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(app.Err)
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	return string(b), nil
}

func authSet(ctx context.Context, app *App, value string, verify, jsonMode bool) error {
	if _, ok := app.Store.(credential.Static); ok {
		return NewCommandError("auth", "set", "SHRAGA_AUTH is set; unset it to use the store", credential.ErrReadOnly)
	}

	if strings.TrimSpace(value) == "" {
		secret, err := readSecret(app)
		if err != nil {
			return err
		}
		value = secret
	}
	cred := normalizeCredential(value)
	if cred == "" {
		return ErrMissingArgument("credential", `shraga auth set "Bearer eyJhbGciOi..."`)
	}

	previous, err := app.Store.Credential()
	if err != nil {
		previous = ""
	}
	if err := app.Store.SetCredential(cred); err != nil {
		return NewCommandError("auth", "set", "store credential", err)
	}

	if verify {
		rctx, cancel := app.requestContext(ctx)
		_, err := app.Client.WhoAmI(rctx)
		cancel()
		if errors.Is(err, api.ErrUnauthorized) {
			if rerr := app.Store.SetCredential(previous); rerr != nil {
				app.Logger.Warn("restoring previous credential failed", "error", rerr)
			}
			return NewCommandError("auth", "set", "server rejected the credential", err)
		}
		if err != nil {
			fmt.Fprintf(app.Err, "%s could not verify credential: %v\n", WarningStyle.Render("[WARN]"), err)
		}
	}

	if jsonMode {
		return NewJSONResponse("auth set", map[string]string{"credential": credential.Mask(cred)}).Write(app.Out)
	}
	app.printf("%s Stored %s\n", SuccessStyle.Render("[OK]"), credential.Mask(cred))
	return nil
}

func authClear(app *App, jsonMode bool) error {
	if _, ok := app.Store.(credential.Static); ok {
		return NewCommandError("auth", "clear", "SHRAGA_AUTH is set; unset it instead", credential.ErrReadOnly)
	}
	if err := app.Store.SetCredential(""); err != nil {
		return NewCommandError("auth", "clear", "remove credential", err)
	}
	if jsonMode {
		return NewJSONResponse("auth clear", map[string]bool{"cleared": true}).Write(app.Out)
	}
	app.printf("%s Credential removed\n", SuccessStyle.Render("[OK]"))
	return nil
}
