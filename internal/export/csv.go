package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"copydesk/api/internal/billing"
)

// exportCSV writes monthly stats as a flat spreadsheet, most recent month
// first, matching the order the stats endpoint returns.
func exportCSV(stats []billing.MonthlyStat, title string) (*Result, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"month", "expected_revenue", "actual_revenue", "completed_count",
		"active_client_count", "variance", "variance_pct",
		"revenue_change", "revenue_change_pct", "tasks_change",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, stat := range stats {
		row := []string{
			stat.Month,
			formatMoney(stat.ExpectedRevenue),
			formatMoney(stat.ActualRevenue),
			fmt.Sprintf("%d", stat.CompletedCount),
			fmt.Sprintf("%d", stat.ActiveClientCount),
			formatMoney(stat.Variance),
			formatMoney(stat.VariancePercentage),
			formatMoney(stat.RevenueChange),
			formatMoney(stat.RevenueChangePercentage),
			fmt.Sprintf("%d", stat.TasksChange),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: sanitizeFilename(title) + ".csv",
		MimeType: "text/csv",
	}, nil
}

func formatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
