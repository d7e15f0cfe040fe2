package store

import (
	"context"
	"encoding/json"
	"fmt"
)

func (s *PostgresStore) ListClients(ctx context.Context, activeOnly bool) ([]Client, error) {
	query := `
		SELECT id, name, contact_name, contact_email, monthly_revenue, active, compensation, created_at, updated_at
		FROM clients
	`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	items := make([]Client, 0)
	for rows.Next() {
		item, err := scanClient(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetClient(ctx context.Context, clientID string) (Client, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, contact_name, contact_email, monthly_revenue, active, compensation, created_at, updated_at
		FROM clients WHERE id=$1
	`, clientID)
	return scanClient(row.Scan)
}

func scanClient(scan func(...any) error) (Client, error) {
	var item Client
	var compRaw []byte
	if err := scan(&item.ID, &item.Name, &item.ContactName, &item.ContactEmail,
		&item.MonthlyRevenue, &item.Active, &compRaw, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Client{}, err
	}
	item.Compensation = map[string]float64{}
	if len(compRaw) > 0 {
		if err := json.Unmarshal(compRaw, &item.Compensation); err != nil {
			return Client{}, fmt.Errorf("decode compensation: %w", err)
		}
	}
	return item, nil
}

func (s *PostgresStore) InsertClient(ctx context.Context, item Client) error {
	comp, err := marshalCompensation(item.Compensation)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, contact_name, contact_email, monthly_revenue, active, compensation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.Name, item.ContactName, item.ContactEmail, item.MonthlyRevenue, item.Active, comp)
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateClient(ctx context.Context, item Client) error {
	comp, err := marshalCompensation(item.Compensation)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE clients
		SET name=$2, contact_name=$3, contact_email=$4, monthly_revenue=$5, active=$6, compensation=$7, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Name, item.ContactName, item.ContactEmail, item.MonthlyRevenue, item.Active, comp)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteClient(ctx context.Context, clientID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id=$1`, clientID)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return nil
}

func marshalCompensation(comp map[string]float64) ([]byte, error) {
	if comp == nil {
		comp = map[string]float64{}
	}
	raw, err := json.Marshal(comp)
	if err != nil {
		return nil, fmt.Errorf("marshal compensation: %w", err)
	}
	return raw, nil
}
