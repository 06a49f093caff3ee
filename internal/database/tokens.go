// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/custodia/internal/models"
)

// MachineIdentity is the identity a bearer token resolves to at admission.
type MachineIdentity struct {
	MachineID   int64
	MachineName string
}

// MachineForToken resolves a bearer token to its machine identity. Returns
// ErrTokenNotFound for unknown tokens.
func (db *DB) MachineForToken(ctx context.Context, token string) (*MachineIdentity, error) {
	stmt, err := db.getStmt(ctx,
		`SELECT machine_id, machine_name FROM auth_tokens WHERE token = ?`)
	if err != nil {
		return nil, err
	}

	ident := &MachineIdentity{}
	err = stmt.QueryRowContext(ctx, token).Scan(&ident.MachineID, &ident.MachineName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	return ident, nil
}

// CreateOrRotateToken mints a fresh UUIDv4 token for the machine group,
// creating the row on first use and rotating the credential on subsequent
// calls. Returns the new token and whether an existing one was rotated.
func (db *DB) CreateOrRotateToken(ctx context.Context, machineName string) (string, bool, error) {
	token := uuid.NewString()
	now := time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE auth_tokens SET token = ?, updated_at = ? WHERE machine_name = ?`,
		token, now, machineName)
	if err != nil {
		return "", false, fmt.Errorf("rotate token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("rotate token result: %w", err)
	}
	if affected > 0 {
		return token, true, nil
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO auth_tokens (machine_name, token, created_at, updated_at)
		 VALUES (?, ?, ?, ?)`,
		machineName, token, now, now)
	if err != nil {
		return "", false, fmt.Errorf("create token: %w", err)
	}
	return token, false, nil
}

// DeleteToken revokes a machine group's credential. Returns whether a row
// was deleted.
func (db *DB) DeleteToken(ctx context.Context, machineName string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM auth_tokens WHERE machine_name = ?`, machineName)
	if err != nil {
		return false, fmt.Errorf("delete token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete token result: %w", err)
	}
	return affected > 0, nil
}

// ListTokens returns all token rows ordered by machine name.
func (db *DB) ListTokens(ctx context.Context) ([]models.TokenInfo, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT machine_id, machine_name, token, created_at, updated_at
		 FROM auth_tokens ORDER BY machine_name`)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer closeWithLog(rows, "result rows")

	var tokens []models.TokenInfo
	for rows.Next() {
		var t models.TokenInfo
		var created, updated time.Time
		if err := rows.Scan(&t.MachineID, &t.MachineName, &t.Token, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		t.CreatedAt = created.UTC().Format(time.RFC3339)
		t.UpdatedAt = updated.UTC().Format(time.RFC3339)
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
