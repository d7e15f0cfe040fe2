// Package analysis runs content audits against published client pages.
package analysis

import (
	"strings"
	"unicode"
)

// Page is the raw material extracted from a fetched page.
type Page struct {
	URL          string
	Title        string
	Text         string
	HeadingCount int
}

// AuditResult is the outcome of a successful content audit.
type AuditResult struct {
	Title        string
	Summary      string
	WordCount    int
	HeadingCount int
}

// CostInfo itemizes what an audit run cost.
type CostInfo struct {
	TotalCost float64            `json:"totalCost"`
	Breakdown map[string]float64 `json:"breakdown"`
}

const (
	fetchCost       = 0.002
	perWordAnalysis = 0.00001
	summarySentMax  = 2
)

// AuditPage produces audit metrics from an already-fetched page. Pure; the
// expensive part is the fetch, not this.
func AuditPage(page Page) (AuditResult, CostInfo) {
	words := countWords(page.Text)
	result := AuditResult{
		Title:        strings.TrimSpace(page.Title),
		Summary:      summarize(page.Text),
		WordCount:    words,
		HeadingCount: page.HeadingCount,
	}

	analysisCost := float64(words) * perWordAnalysis
	cost := CostInfo{
		TotalCost: fetchCost + analysisCost,
		Breakdown: map[string]float64{
			"fetch":    fetchCost,
			"analysis": analysisCost,
		},
	}
	return result, cost
}

func countWords(text string) int {
	return len(strings.FieldsFunc(text, unicode.IsSpace))
}

// summarize takes the opening sentences of the page body, capped at
// summarySentMax full stops.
func summarize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var b strings.Builder
	sentences := 0
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentences++
			if sentences >= summarySentMax {
				break
			}
		}
		if b.Len() > 400 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
