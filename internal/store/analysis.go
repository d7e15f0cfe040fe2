package store

import (
	"context"
	"encoding/json"
	"fmt"
)

func (s *PostgresStore) InsertAnalysisRun(ctx context.Context, run AnalysisRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, ticket_id, url, status)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.TicketID, run.URL, run.Status)
	if err != nil {
		return fmt.Errorf("insert analysis run: %w", err)
	}
	return nil
}

// CompleteAnalysisRun writes the results of a successful run. Failed runs
// never reach this path; their partial results are discarded.
func (s *PostgresStore) CompleteAnalysisRun(ctx context.Context, run AnalysisRun) error {
	breakdown, err := json.Marshal(run.CostBreakdown)
	if err != nil {
		return fmt.Errorf("marshal cost breakdown: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE analysis_runs
		SET status='completed', title=$2, summary=$3, word_count=$4, heading_count=$5,
			total_cost=$6, cost_breakdown=$7, completed_at=NOW()
		WHERE id=$1
	`, run.ID, run.Title, run.Summary, run.WordCount, run.HeadingCount, run.TotalCost, breakdown)
	if err != nil {
		return fmt.Errorf("complete analysis run: %w", err)
	}
	return nil
}

func (s *PostgresStore) FailAnalysisRun(ctx context.Context, runID, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE analysis_runs SET status='failed', error=$2, completed_at=NOW() WHERE id=$1
	`, runID, errMsg)
	if err != nil {
		return fmt.Errorf("fail analysis run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAnalysisRun(ctx context.Context, runID string) (AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ticket_id, url, status, title, summary, word_count, heading_count,
			total_cost, cost_breakdown, error, created_at, completed_at
		FROM analysis_runs WHERE id=$1
	`, runID)
	return scanAnalysisRun(row.Scan)
}

func (s *PostgresStore) ListAnalysisRuns(ctx context.Context, ticketID string) ([]AnalysisRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticket_id, url, status, title, summary, word_count, heading_count,
			total_cost, cost_breakdown, error, created_at, completed_at
		FROM analysis_runs
		WHERE ticket_id=$1
		ORDER BY created_at DESC
	`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list analysis runs: %w", err)
	}
	defer rows.Close()

	runs := make([]AnalysisRun, 0)
	for rows.Next() {
		run, err := scanAnalysisRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis runs: %w", err)
	}
	return runs, nil
}

func scanAnalysisRun(scan func(...any) error) (AnalysisRun, error) {
	var run AnalysisRun
	var breakdown []byte
	if err := scan(&run.ID, &run.TicketID, &run.URL, &run.Status, &run.Title, &run.Summary,
		&run.WordCount, &run.HeadingCount, &run.TotalCost, &breakdown, &run.Error,
		&run.CreatedAt, &run.CompletedAt); err != nil {
		return AnalysisRun{}, err
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &run.CostBreakdown); err != nil {
			return AnalysisRun{}, fmt.Errorf("decode cost breakdown: %w", err)
		}
	}
	return run, nil
}
