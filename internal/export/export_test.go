package export

import (
	"context"
	"strings"
	"testing"
	"time"

	"copydesk/api/internal/billing"
)

func sampleStats() []billing.MonthlyStat {
	return []billing.MonthlyStat{
		{
			Month:             "2024-02",
			ExpectedRevenue:   5000,
			ActualRevenue:     4200,
			CompletedCount:    7,
			ActiveClientCount: 3,
			Variance:          -800,
		},
		{
			Month:             "2024-01",
			ExpectedRevenue:   5000,
			ActualRevenue:     5600.5,
			CompletedCount:    9,
			ActiveClientCount: 3,
			Variance:          600.5,
		},
	}
}

func TestExportCSV(t *testing.T) {
	svc := NewService(nil)
	result, err := svc.ExportMonthly(context.Background(), sampleStats(), Request{Format: FormatCSV})
	if err != nil {
		t.Fatalf("ExportMonthly failed: %v", err)
	}

	if result.MimeType != "text/csv" {
		t.Errorf("expected text/csv, got %s", result.MimeType)
	}
	if !strings.HasSuffix(result.Filename, ".csv") {
		t.Errorf("expected .csv filename, got %s", result.Filename)
	}

	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "month,expected_revenue") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2024-02,5000.00,4200.00,7,3,-800.00") {
		t.Errorf("unexpected first row: %s", lines[1])
	}
	if !strings.Contains(lines[2], "5600.50") {
		t.Errorf("expected two-decimal money formatting, got %s", lines[2])
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewService(nil)
	if _, err := svc.ExportMonthly(context.Background(), sampleStats(), Request{Format: "docx"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestRenderReportHTML(t *testing.T) {
	html, err := RenderReportHTML(ReportData{
		Title:       "February Report",
		GeneratedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Stats:       sampleStats(),
	})
	if err != nil {
		t.Fatalf("RenderReportHTML failed: %v", err)
	}

	for _, want := range []string{"February Report", "2024-02", "$4200.00", "Mar 1, 2024"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered report missing %q", want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Monthly Revenue Report":  "Monthly-Revenue-Report",
		"Q1/2024: Billing <run>!": "Q12024-Billing-run",
		"":                        "report",
	}
	for input, want := range cases {
		if got := sanitizeFilename(input); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL("a b&c")
	if got != "a%20b%26c" {
		t.Errorf("expected a%%20b%%26c, got %s", got)
	}
}
