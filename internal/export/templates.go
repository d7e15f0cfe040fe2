package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"copydesk/api/internal/billing"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"money": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		// Fallback to built-in template if file not found
		reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(string(templateContent)))
}

// ReportData holds data for report template rendering.
type ReportData struct {
	Title       string
	GeneratedAt time.Time
	Stats       []billing.MonthlyStat
}

// RenderReportHTML renders the monthly report template with provided data.
func RenderReportHTML(data ReportData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load.
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: right; }
    th:first-child, td:first-child { text-align: left; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">Generated {{formatDate .GeneratedAt "Jan 2, 2006"}}</div>
  <table>
    <tr>
      <th>Month</th><th>Expected</th><th>Actual</th><th>Variance</th>
      <th>Completed</th><th>Active clients</th>
    </tr>
    {{range .Stats}}
    <tr>
      <td>{{.Month}}</td>
      <td>{{money .ExpectedRevenue}}</td>
      <td>{{money .ActualRevenue}}</td>
      <td>{{money .Variance}}</td>
      <td>{{.CompletedCount}}</td>
      <td>{{.ActiveClientCount}}</td>
    </tr>
    {{end}}
  </table>
</body>
</html>`
