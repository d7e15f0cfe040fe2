package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole console is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across tickets, leads, and clients using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultTicket {
		ticketWhere := "t.search_vector @@ " + tsQuery
		if q.FilterStatus != "" {
			ticketWhere += fmt.Sprintf(" AND t.status = $%d", argN)
			args = append(args, q.FilterStatus)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'ticket'::text AS type, t.id, t.title,
				ts_headline('english', t.assignee || ' ' || t.reviewer, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				t.status, ''::text AS stage,
				ts_rank(t.search_vector, %s) AS rank
			FROM tickets t
			WHERE %s`, tsQuery, tsQuery, ticketWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultLead {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'lead'::text AS type, l.id, l.name AS title,
				ts_headline('english', l.company || ' ' || l.email, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS status, l.stage,
				ts_rank(l.search_vector, %s) AS rank
			FROM leads l
			WHERE l.search_vector @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultClient {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'client'::text AS type, c.id, c.name AS title,
				ts_headline('english', c.contact_name || ' ' || c.contact_email, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS status, ''::text AS stage,
				ts_rank(c.search_vector, %s) AS rank
			FROM clients c
			WHERE c.search_vector @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, status, stage
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.Status, &r.Stage); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]TicketRecord, []LeadRecord, []ClientRecord, error) {
	ticketRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, type, status, assignee, reviewer, COALESCE(client_id, '')
		FROM tickets
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load tickets: %w", err)
	}
	defer ticketRows.Close()

	tickets := make([]TicketRecord, 0)
	for ticketRows.Next() {
		var t TicketRecord
		if err := ticketRows.Scan(&t.ID, &t.Title, &t.Type, &t.Status, &t.Assignee, &t.Reviewer, &t.ClientID); err != nil {
			return nil, nil, nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := ticketRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate tickets: %w", err)
	}

	leadRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, email, company, stage, source FROM leads
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load leads: %w", err)
	}
	defer leadRows.Close()

	leads := make([]LeadRecord, 0)
	for leadRows.Next() {
		var l LeadRecord
		if err := leadRows.Scan(&l.ID, &l.Name, &l.Email, &l.Company, &l.Stage, &l.Source); err != nil {
			return nil, nil, nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	if err := leadRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate leads: %w", err)
	}

	clientRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, contact_name, contact_email, active FROM clients
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load clients: %w", err)
	}
	defer clientRows.Close()

	clients := make([]ClientRecord, 0)
	for clientRows.Next() {
		var c ClientRecord
		if err := clientRows.Scan(&c.ID, &c.Name, &c.ContactName, &c.ContactEmail, &c.Active); err != nil {
			return nil, nil, nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := clientRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate clients: %w", err)
	}

	return tickets, leads, clients, nil
}
