package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) ListLeads(ctx context.Context, stage string) ([]Lead, error) {
	query := `
		SELECT id, name, email, company, stage, source, estimated_value, created_at, updated_at
		FROM leads
	`
	args := []any{}
	if stage != "" {
		query += ` WHERE stage = $1`
		args = append(args, stage)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		var item Lead
		if err := rows.Scan(&item.ID, &item.Name, &item.Email, &item.Company, &item.Stage,
			&item.Source, &item.EstimatedValue, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (Lead, error) {
	var item Lead
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, company, stage, source, estimated_value, created_at, updated_at
		FROM leads WHERE id=$1
	`, leadID).Scan(&item.ID, &item.Name, &item.Email, &item.Company, &item.Stage,
		&item.Source, &item.EstimatedValue, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Lead{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertLead(ctx context.Context, item Lead) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leads (id, name, email, company, stage, source, estimated_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.Name, item.Email, item.Company, item.Stage, item.Source, item.EstimatedValue)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLead(ctx context.Context, item Lead) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE leads
		SET name=$2, email=$3, company=$4, source=$5, estimated_value=$6, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Name, item.Email, item.Company, item.Source, item.EstimatedValue)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLeadStage(ctx context.Context, leadID, stage string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE leads SET stage=$2, updated_at=NOW() WHERE id=$1
	`, leadID, stage)
	if err != nil {
		return fmt.Errorf("update lead stage: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteLead(ctx context.Context, leadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id=$1`, leadID)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	return nil
}
