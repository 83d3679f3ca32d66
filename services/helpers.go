package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nbakenov/tournament-core/models"
)

// withTx runs fn inside a transaction, committing on nil and rolling back on
// error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// detailJSON marshals a detail payload for a verification log entry.
// Marshalling plain maps of scalars cannot fail; a nil return on error keeps
// the audit append going regardless.
func detailJSON(payload map[string]interface{}) *string {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

// appendLobbyEntry records an organizer action on the match's free-form
// lobby info, kept as a JSON array for audit purposes.
func appendLobbyEntry(match *models.Match, entry map[string]interface{}) {
	var entries []map[string]interface{}
	if match.LobbyInfo != nil && *match.LobbyInfo != "" {
		_ = json.Unmarshal([]byte(*match.LobbyInfo), &entries)
	}
	entries = append(entries, entry)
	if data, err := json.Marshal(entries); err == nil {
		s := string(data)
		match.LobbyInfo = &s
	}
}

func intPtr(v int) *int { return &v }
