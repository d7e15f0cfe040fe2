// Package billing resolves ticket revenue and produces the monthly
// reconciliation stats shown on the console dashboard. Revenue precedence
// lives here and only here; ticket cards, monthly aggregation, and bulk
// client totals all go through ResolveRevenue so the three views can never
// drift apart.
package billing

import (
	"strings"

	"copydesk/api/internal/store"
)

// RateKey builds the rate-card key for a content type ("blog" -> "blogRate").
func RateKey(contentType string) string {
	return strings.TrimSpace(contentType) + "Rate"
}

// ResolveRevenue returns the authoritative revenue for a ticket. Strict
// precedence, first match wins, winner-take-all:
//
//  1. the financials record's explicit actual revenue, when positive
//  2. the client rate card's flat rate for the ticket's content type
//  3. zero
//
// A missing financials record or rate card is normal data, never an error.
func ResolveRevenue(fin *store.Financials, contentType string, compensation map[string]float64) float64 {
	if fin != nil && fin.ActualRevenue > 0 {
		return fin.ActualRevenue
	}
	if rate := compensation[RateKey(contentType)]; rate > 0 {
		return rate
	}
	return 0
}

// TotalCost recomputes a financials record's cost from its hour/rate
// breakdown. Saved server-side so stored totals can't disagree with the
// breakdown they came from.
func TotalCost(fin store.Financials) float64 {
	return fin.AssigneeHours*fin.AssigneeRate + fin.ReviewerHours*fin.ReviewerRate
}

// BulkClientRevenue sums resolved revenue per client name across a ticket
// set. Tickets are grouped in a single pass; the per-ticket lookups are all
// map reads, so a batch of N tickets costs O(N) regardless of how many
// client names are requested.
func BulkClientRevenue(
	clientNames []string,
	tickets []store.Ticket,
	financials map[string]store.Financials,
	compensations map[string]map[string]float64,
) map[string]float64 {
	wanted := make(map[string]bool, len(clientNames))
	totals := make(map[string]float64, len(clientNames))
	for _, name := range clientNames {
		wanted[name] = true
		totals[name] = 0
	}

	for _, ticket := range tickets {
		if !wanted[ticket.ClientName] {
			continue
		}
		var fin *store.Financials
		if f, ok := financials[ticket.ID]; ok {
			fin = &f
		}
		totals[ticket.ClientName] += ResolveRevenue(fin, ticket.Type, compensations[ticket.ClientName])
	}
	return totals
}
