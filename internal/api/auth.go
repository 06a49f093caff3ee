// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/custodia/internal/database"
	"github.com/tomtom215/custodia/internal/ingest"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
)

// TokenResolver maps a bearer token to the machine identity it was minted
// for. Implemented by the durable store's auth_tokens table.
type TokenResolver interface {
	MachineForToken(ctx context.Context, token string) (*database.MachineIdentity, error)
}

type identityKey struct{}

// IdentityFromContext returns the authenticated machine identity placed by
// the auth middleware, or false when the request was not authenticated.
func IdentityFromContext(ctx context.Context) (ingest.Identity, bool) {
	ident, ok := ctx.Value(identityKey{}).(ingest.Identity)
	return ident, ok
}

// Authenticate requires a valid bearer token and resolves the machine
// identity from it. The batch envelope never names the machine; this
// middleware is the only source of machine_name downstream.
func Authenticate(resolver TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				metrics.RecordRejection("auth")
				respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR",
					"missing or malformed Authorization header", nil)
				return
			}

			machine, err := resolver.MachineForToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, database.ErrTokenNotFound) {
					metrics.RecordRejection("auth")
					respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR",
						"unknown bearer token", nil)
					return
				}
				respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
					"token lookup failed", err)
				return
			}

			logging.Debug().Str("machine", sanitizeLogValue(machine.MachineName)).
				Msg("Authenticated ingest request")

			ident := ingest.Identity{
				MachineID:   machine.MachineID,
				MachineName: machine.MachineName,
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, ident)))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
