// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credential

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Info is a parsed view of a credential. The client never verifies
// signatures; the server does.
type Info struct {
	Scheme string
	// JWT is set when the token decodes as a JSON Web Token.
	JWT       bool
	Subject   string
	ExpiresAt time.Time
}

// Inspect splits cred into scheme and token and, for JWT bearer tokens,
// reads the subject and expiry claims.
func Inspect(cred string) Info {
	cred = strings.TrimSpace(cred)
	if cred == "" {
		return Info{}
	}

	scheme, token, found := strings.Cut(cred, " ")
	if !found {
		return Info{}
	}
	info := Info{Scheme: scheme}
	if !strings.EqualFold(scheme, "bearer") {
		return info
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), claims); err != nil {
		return info
	}
	info.JWT = true
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info
}

// Expired reports whether a JWT expiry has passed at now.
func (i Info) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Mask shortens cred for display, keeping the scheme.
func Mask(cred string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(cred), " ")
	if !found {
		token, scheme = scheme, ""
	}
	masked := "****"
	if len(token) > 8 {
		masked = token[:4] + "..." + token[len(token)-4:]
	}
	if scheme == "" {
		return masked
	}
	return scheme + " " + masked
}
