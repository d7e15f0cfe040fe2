package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"copydesk/api/internal/timeline"
)

// GetTimeline loads an entity's ledger. A missing row returns an empty
// ledger and no error: pre-migration entities legitimately have none, and
// callers handle that through the legacy entry policy.
func (s *PostgresStore) GetTimeline(ctx context.Context, entityID string) (timeline.Ledger, error) {
	var historyRaw, durationsRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT state_history, state_durations FROM entity_timelines WHERE entity_id=$1
	`, entityID).Scan(&historyRaw, &durationsRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return timeline.Ledger{}, nil
	}
	if err != nil {
		return timeline.Ledger{}, fmt.Errorf("get timeline: %w", err)
	}
	return decodeLedger(historyRaw, durationsRaw)
}

// SaveTimeline upserts the ledger's history and duration maps. The change
// log is not stored here; it lives in the append-only status_changes table.
func (s *PostgresStore) SaveTimeline(ctx context.Context, entityID string, ledger timeline.Ledger) error {
	history, err := json.Marshal(ledger.StateHistory)
	if err != nil {
		return fmt.Errorf("marshal state history: %w", err)
	}
	durations, err := json.Marshal(ledger.StateDurations)
	if err != nil {
		return fmt.Errorf("marshal state durations: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entity_timelines (entity_id, state_history, state_durations)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_id) DO UPDATE SET
			state_history=EXCLUDED.state_history,
			state_durations=EXCLUDED.state_durations,
			updated_at=NOW()
	`, entityID, history, durations)
	if err != nil {
		return fmt.Errorf("save timeline: %w", err)
	}
	return nil
}

// ListTimelinesByIDs side-loads ledgers for a batch of entities in one
// query. Entities without a row are simply absent from the result.
func (s *PostgresStore) ListTimelinesByIDs(ctx context.Context, entityIDs []string) (map[string]timeline.Ledger, error) {
	result := make(map[string]timeline.Ledger, len(entityIDs))
	if len(entityIDs) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(entityIDs))
	args := make([]any, len(entityIDs))
	for i, id := range entityIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT entity_id, state_history, state_durations
		FROM entity_timelines WHERE entity_id IN (%s)
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entityID string
		var historyRaw, durationsRaw []byte
		if err := rows.Scan(&entityID, &historyRaw, &durationsRaw); err != nil {
			return nil, fmt.Errorf("scan timeline: %w", err)
		}
		ledger, err := decodeLedger(historyRaw, durationsRaw)
		if err != nil {
			return nil, err
		}
		result[entityID] = ledger
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timelines: %w", err)
	}
	return result, nil
}

func decodeLedger(historyRaw, durationsRaw []byte) (timeline.Ledger, error) {
	ledger := timeline.Ledger{
		StateHistory:   map[string]time.Time{},
		StateDurations: map[string]int{},
	}
	if len(historyRaw) > 0 {
		if err := json.Unmarshal(historyRaw, &ledger.StateHistory); err != nil {
			return timeline.Ledger{}, fmt.Errorf("decode state history: %w", err)
		}
	}
	if len(durationsRaw) > 0 {
		if err := json.Unmarshal(durationsRaw, &ledger.StateDurations); err != nil {
			return timeline.Ledger{}, fmt.Errorf("decode state durations: %w", err)
		}
	}
	return ledger, nil
}

// ---- status change log ----

func (s *PostgresStore) InsertStatusChange(ctx context.Context, change StatusChange) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO status_changes (entity_id, from_state, to_state, actor, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, change.EntityID, change.FromState, change.ToState, change.Actor, change.Notes, change.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListStatusChanges(ctx context.Context, entityID string) ([]StatusChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, from_state, to_state, actor, notes, created_at
		FROM status_changes
		WHERE entity_id=$1
		ORDER BY created_at ASC, id ASC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list status changes: %w", err)
	}
	defer rows.Close()

	changes := make([]StatusChange, 0)
	for rows.Next() {
		var change StatusChange
		if err := rows.Scan(&change.ID, &change.EntityID, &change.FromState, &change.ToState,
			&change.Actor, &change.Notes, &change.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status changes: %w", err)
	}
	return changes, nil
}
