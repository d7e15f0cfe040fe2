package store

import (
	"context"
	"fmt"
	"strings"
)

func (s *PostgresStore) ListTickets(ctx context.Context, status string) ([]Ticket, error) {
	query := `
		SELECT t.id, t.title, t.type, t.status, t.client_id, COALESCE(c.name, ''),
			t.assignee, t.reviewer, t.review_entered_at, t.created_at, t.updated_at
		FROM tickets t
		LEFT JOIN clients c ON c.id = t.client_id
	`
	args := []any{}
	if status != "" {
		query += ` WHERE t.status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY t.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	items := make([]Ticket, 0)
	for rows.Next() {
		var item Ticket
		if err := rows.Scan(&item.ID, &item.Title, &item.Type, &item.Status, &item.ClientID, &item.ClientName,
			&item.Assignee, &item.Reviewer, &item.ReviewEnteredAt, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetTicket(ctx context.Context, ticketID string) (Ticket, error) {
	var item Ticket
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.title, t.type, t.status, t.client_id, COALESCE(c.name, ''),
			t.assignee, t.reviewer, t.review_entered_at, t.created_at, t.updated_at
		FROM tickets t
		LEFT JOIN clients c ON c.id = t.client_id
		WHERE t.id=$1
	`, ticketID).Scan(&item.ID, &item.Title, &item.Type, &item.Status, &item.ClientID, &item.ClientName,
		&item.Assignee, &item.Reviewer, &item.ReviewEnteredAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Ticket{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertTicket(ctx context.Context, item Ticket) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (id, title, type, status, client_id, assignee, reviewer)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, item.ID, item.Title, item.Type, item.Status, item.ClientID, item.Assignee, item.Reviewer)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateTicket(ctx context.Context, item Ticket) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tickets
		SET title=$2, type=$3, client_id=NULLIF($4, ''), assignee=$5, reviewer=$6, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Title, item.Type, item.ClientID, item.Assignee, item.Reviewer)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	return nil
}

// UpdateTicketStatus writes the new pipeline state. Entering client_review
// also stamps review_entered_at, the legacy fallback field used for tickets
// that predate timeline ledgers. Last write wins; concurrent transitions are
// not detected here.
func (s *PostgresStore) UpdateTicketStatus(ctx context.Context, ticketID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tickets
		SET status=$2,
			review_entered_at=CASE WHEN $2=$3 THEN NOW() ELSE review_entered_at END,
			updated_at=NOW()
		WHERE id=$1
	`, ticketID, status, StatusClientReview)
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTicket(ctx context.Context, ticketID string) error {
	// Sidecars (financials, timeline, status changes) go with the ticket.
	_, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE id=$1`, ticketID)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	return nil
}

// ---- financials sidecar ----

func (s *PostgresStore) GetFinancials(ctx context.Context, ticketID string) (Financials, error) {
	var fin Financials
	err := s.db.QueryRowContext(ctx, `
		SELECT ticket_id, actual_revenue, assignee_hours, assignee_rate, reviewer_hours, reviewer_rate, total_cost, updated_at
		FROM ticket_financials WHERE ticket_id=$1
	`, ticketID).Scan(&fin.TicketID, &fin.ActualRevenue, &fin.AssigneeHours, &fin.AssigneeRate,
		&fin.ReviewerHours, &fin.ReviewerRate, &fin.TotalCost, &fin.UpdatedAt)
	if err != nil {
		return Financials{}, err
	}
	return fin, nil
}

func (s *PostgresStore) UpsertFinancials(ctx context.Context, fin Financials) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ticket_financials (ticket_id, actual_revenue, assignee_hours, assignee_rate, reviewer_hours, reviewer_rate, total_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticket_id) DO UPDATE SET
			actual_revenue=EXCLUDED.actual_revenue,
			assignee_hours=EXCLUDED.assignee_hours,
			assignee_rate=EXCLUDED.assignee_rate,
			reviewer_hours=EXCLUDED.reviewer_hours,
			reviewer_rate=EXCLUDED.reviewer_rate,
			total_cost=EXCLUDED.total_cost,
			updated_at=NOW()
	`, fin.TicketID, fin.ActualRevenue, fin.AssigneeHours, fin.AssigneeRate,
		fin.ReviewerHours, fin.ReviewerRate, fin.TotalCost)
	if err != nil {
		return fmt.Errorf("upsert financials: %w", err)
	}
	return nil
}

// ListFinancialsByIDs side-loads the financials sidecar for a batch of
// tickets in one query.
func (s *PostgresStore) ListFinancialsByIDs(ctx context.Context, ticketIDs []string) (map[string]Financials, error) {
	result := make(map[string]Financials, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(ticketIDs))
	args := make([]any, len(ticketIDs))
	for i, id := range ticketIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT ticket_id, actual_revenue, assignee_hours, assignee_rate, reviewer_hours, reviewer_rate, total_cost, updated_at
		FROM ticket_financials WHERE ticket_id IN (%s)
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, fmt.Errorf("list financials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fin Financials
		if err := rows.Scan(&fin.TicketID, &fin.ActualRevenue, &fin.AssigneeHours, &fin.AssigneeRate,
			&fin.ReviewerHours, &fin.ReviewerRate, &fin.TotalCost, &fin.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan financials: %w", err)
		}
		result[fin.TicketID] = fin
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate financials: %w", err)
	}
	return result, nil
}
