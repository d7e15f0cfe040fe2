package billing

import (
	"time"

	"copydesk/api/internal/store"
	"copydesk/api/internal/timeline"
	"copydesk/api/internal/timeutil"
)

// MonthlyStat is one month of the revenue reconciliation view. Derived on
// demand from tickets, ledgers, financials and clients; never persisted.
type MonthlyStat struct {
	Month                   string  `json:"month"` // "2024-01"
	ExpectedRevenue         float64 `json:"expectedRevenue"`
	ActualRevenue           float64 `json:"actualRevenue"`
	CompletedCount          int     `json:"completedCount"`
	ActiveClientCount       int     `json:"activeClientCount"`
	Variance                float64 `json:"variance"`
	VariancePercentage      float64 `json:"variancePercentage"`
	RevenueChange           float64 `json:"revenueChange"`
	RevenueChangePercentage float64 `json:"revenueChangePercentage"`
	TasksChange             int     `json:"tasksChange"`
}

// AggregateMonthly buckets tickets into the last monthsBack calendar months
// (including the current one) and computes per-month revenue statistics,
// returned most-recent-first.
//
// A ticket lands in the month containing its paid instant, else its invoiced
// instant, else its last-update instant; tickets with none of the three are
// excluded entirely. Expected revenue is the sum of monthlyRevenue over
// currently active clients, the same snapshot for every month, so past
// months' expected figures are not point-in-time accurate. That mirrors the
// dashboard this replaces and is deliberate.
//
// Months with no revenue and no completed work are dropped, except the
// current month, which is always kept as a live placeholder. Month-over-month
// deltas compare adjacent months of the filtered set, skipping the gaps.
func AggregateMonthly(
	tickets []store.Ticket,
	ledgers map[string]timeline.Ledger,
	financials map[string]store.Financials,
	clients []store.Client,
	monthsBack int,
	now time.Time,
) []MonthlyStat {
	if monthsBack <= 0 {
		monthsBack = 12
	}

	expectedRevenue := 0.0
	activeClients := 0
	compByName := make(map[string]map[string]float64, len(clients))
	for _, client := range clients {
		compByName[client.Name] = client.Compensation
		if client.Active {
			expectedRevenue += client.MonthlyRevenue
			activeClients++
		}
	}

	currentStart := monthStart(now)
	stats := make([]MonthlyStat, 0, monthsBack)

	// Oldest first; reversed to most-recent-first after deltas are computed.
	for i := monthsBack - 1; i >= 0; i-- {
		start := currentStart.AddDate(0, -i, 0)
		end := start.AddDate(0, 1, 0)

		stat := MonthlyStat{
			Month:             start.Format("2006-01"),
			ExpectedRevenue:   expectedRevenue,
			ActiveClientCount: activeClients,
		}

		for _, ticket := range tickets {
			at := bucketInstant(ticket, ledgers)
			if at == nil {
				continue
			}
			// Half-open interval: exactly monthStart belongs to this month.
			if at.Before(start) || !at.Before(end) {
				continue
			}
			var fin *store.Financials
			if f, ok := financials[ticket.ID]; ok {
				fin = &f
			}
			stat.ActualRevenue += ResolveRevenue(fin, ticket.Type, compByName[ticket.ClientName])
			if store.IsTerminalStatus(ticket.Status) {
				stat.CompletedCount++
			}
		}

		stat.Variance = stat.ActualRevenue - stat.ExpectedRevenue
		if stat.ExpectedRevenue > 0 {
			stat.VariancePercentage = stat.Variance / stat.ExpectedRevenue * 100
		}

		isCurrent := start.Equal(currentStart)
		if stat.ActualRevenue == 0 && stat.CompletedCount == 0 && !isCurrent {
			continue
		}
		stats = append(stats, stat)
	}

	// Deltas over the filtered sequence: gaps between retained months are
	// skipped, each month compares to the previous retained one.
	for i := 1; i < len(stats); i++ {
		prev := stats[i-1]
		stats[i].RevenueChange = stats[i].ActualRevenue - prev.ActualRevenue
		if prev.ActualRevenue > 0 {
			stats[i].RevenueChangePercentage = stats[i].RevenueChange / prev.ActualRevenue * 100
		}
		stats[i].TasksChange = stats[i].CompletedCount - prev.CompletedCount
	}

	for i, j := 0, len(stats)-1; i < j; i, j = i+1, j-1 {
		stats[i], stats[j] = stats[j], stats[i]
	}
	return stats
}

// bucketInstant picks the instant that assigns a ticket to a month:
// paid entry, else invoiced entry, else the ticket's last update.
func bucketInstant(ticket store.Ticket, ledgers map[string]timeline.Ledger) *time.Time {
	if ledger, ok := ledgers[ticket.ID]; ok {
		if at := ledger.LastEntered(store.StatusPaid); at != nil {
			return at
		}
		if at := ledger.LastEntered(store.StatusInvoiced); at != nil {
			return at
		}
	}
	return timeutil.Normalize(ticket.UpdatedAt)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
