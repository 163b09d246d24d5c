package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/buddy/internal/profile"
)

var _ profile.Store = (*Store)(nil)

// ═══════════════════════════════════════════════════════════════════════════════
// PROFILE STORE
// ═══════════════════════════════════════════════════════════════════════════════

// Exists reports whether a profile is stored for userID.
func (s *Store) Exists(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM profiles WHERE user_id = ?", userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check profile %s: %w", userID, err)
	}
	return true, nil
}

// Load reads a profile and its emotional history. Snapshots that fail to
// decode or validate are skipped and noted in Profile.Diagnostics.
func (s *Store) Load(ctx context.Context, userID string) (*profile.Profile, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM profiles WHERE user_id = ?", userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}

	plain, err := s.decode(payload)
	if err != nil {
		return nil, fmt.Errorf("open profile %s: %w", userID, err)
	}
	var p profile.Profile
	if err := json.Unmarshal(plain, &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", userID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, payload FROM snapshots WHERE user_id = ? ORDER BY seq", userID)
	if err != nil {
		return nil, fmt.Errorf("load snapshots %s: %w", userID, err)
	}
	defer rows.Close()

	p.EmotionalHistory = []profile.Snapshot{}
	for rows.Next() {
		var seq int
		var raw []byte
		if err := rows.Scan(&seq, &raw); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}

		snap, err := s.decodeSnapshot(raw)
		if err != nil {
			p.Diagnostics = append(p.Diagnostics, fmt.Sprintf("snapshot %d skipped: %v", seq, err))
			log.Warn().Str("user_id", userID).Int("seq", seq).Err(err).Msg("skipping corrupt snapshot")
			continue
		}
		p.EmotionalHistory = append(p.EmotionalHistory, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return &p, nil
}

func (s *Store) decodeSnapshot(raw []byte) (profile.Snapshot, error) {
	plain, err := s.decode(raw)
	if err != nil {
		return profile.Snapshot{}, fmt.Errorf("%w: %v", profile.ErrCorruptSnapshot, err)
	}
	return profile.DecodeSnapshot(plain)
}

// Save replaces the stored profile and its full history in one transaction.
func (s *Store) Save(ctx context.Context, p *profile.Profile) error {
	if p == nil || p.UserID == "" {
		return errors.New("save profile: missing user id")
	}

	head := p.Clone()
	head.EmotionalHistory = nil
	plain, err := json.Marshal(head)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	payload, err := s.encode(plain)
	if err != nil {
		return fmt.Errorf("seal profile: %w", err)
	}

	snapshots := make([][]byte, len(p.EmotionalHistory))
	for i, snap := range p.EmotionalHistory {
		raw, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot %d: %w", i, err)
		}
		if snapshots[i], err = s.encode(raw); err != nil {
			return fmt.Errorf("seal snapshot %d: %w", i, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	created := p.CreatedAt.UTC().Format(time.RFC3339Nano)

	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (user_id, payload, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
			p.UserID, payload, created, now)
		if err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots WHERE user_id = ?", p.UserID); err != nil {
			return fmt.Errorf("clear snapshots: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO snapshots (user_id, seq, taken_at, payload) VALUES (?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare snapshot insert: %w", err)
		}
		defer stmt.Close()

		for i, raw := range snapshots {
			takenAt := p.EmotionalHistory[i].Timestamp.UTC().Format(time.RFC3339Nano)
			if _, err := stmt.ExecContext(ctx, p.UserID, i, takenAt, raw); err != nil {
				return fmt.Errorf("insert snapshot %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Debug().Str("user_id", p.UserID).Int("snapshots", len(snapshots)).Msg("profile saved")
	return nil
}

// Delete removes a profile and its history. Deleting an unknown user is not
// an error.
func (s *Store) Delete(ctx context.Context, userID string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("delete snapshots: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM profiles WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("delete profile: %w", err)
		}
		return nil
	})
}

// List returns every stored user id in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT user_id FROM profiles ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
