// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation for destructive commands.
//
// The flow is the same everywhere:
//  1. --confirm proceeds without prompting
//  2. --json without --confirm is an error (no prompts in JSON mode)
//  3. a non-TTY stdin without --confirm is an error
//  4. otherwise the user is asked

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ConfirmationOptions describes how a destructive command was invoked.
type ConfirmationOptions struct {
	// ConfirmFlag is set when --confirm was passed
	ConfirmFlag bool
	JSONMode    bool

	// In and Out default to stdin and stdout.
	In  io.Reader
	Out io.Writer

	// Interactive overrides TTY detection when non-nil.
	Interactive *bool
}

// RequireConfirmation reports whether action may proceed.
func RequireConfirmation(action string, opts ConfirmationOptions) (bool, error) {
	if opts.ConfirmFlag {
		return true, nil
	}
	if opts.JSONMode {
		return false, NewValidationErrorWithExample("confirm", "",
			fmt.Sprintf("%s requires --confirm in JSON mode", action), "--confirm")
	}

	interactive := CanPrompt()
	if opts.Interactive != nil {
		interactive = *opts.Interactive
	}
	if !interactive {
		return false, NewValidationErrorWithExample("confirm", "",
			fmt.Sprintf("%s requires --confirm when stdin is not a terminal", action), "--confirm")
	}

	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return PromptYesNo(in, out, fmt.Sprintf("Are you sure you want to %s?", action)), nil
}

// PromptYesNo asks question and reads one line from in. Anything but
// y or yes counts as no.
func PromptYesNo(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
