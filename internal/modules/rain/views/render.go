package views

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strconv"
	"time"

	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/summary"
	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/types"
)

const (
	missing    = "—"
	timeLayout = "2006-01-02 15:04:05 MST"
)

var dashboardTmpl *template.Template

var funcs = template.FuncMap{
	"to_json":     toJSON,
	"chart":       chartOf,
	"value":       formatValue,
	"one_decimal": formatOneDecimal,
	"fmt_time":    formatTime,
	"cell":        formatCell,
	"percent":     func(p float64) string { return strconv.FormatFloat(p, 'f', 1, 64) + "%" },
}

// loadTemplatesFromFS loads dashboard templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	dashboardTmpl, err = template.New("dashboard").Funcs(funcs).ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads embedded dashboard templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// DashboardData is the view model of the page and of the summary partial.
type DashboardData struct {
	Title      string
	Collection string
	// RefreshSeconds is the HTMX polling interval; 0 disables polling.
	RefreshSeconds int
	Summary        summary.Summary
}

func RenderDashboard(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "dashboard.html", data)
}

// RenderSummaryPartial executes only the summary partial into w.
// Use for HTMX fragment refresh.
func RenderSummaryPartial(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "partials/summary.html", data)
}

// chartData is what the page script feeds to Chart.js.
type chartData struct {
	Labels       []string   `json:"labels"`
	Values       []*float64 `json:"values"`
	Ordinal      bool       `json:"ordinal"`
	StatusLabels []string   `json:"status_labels"`
	StatusCounts []int      `json:"status_counts"`
	StatusShares []float64  `json:"status_shares"`
}

func chartOf(s summary.Summary) chartData {
	c := chartData{
		Labels:       make([]string, 0, len(s.Series)),
		Values:       make([]*float64, 0, len(s.Series)),
		Ordinal:      s.Ordinal,
		StatusLabels: make([]string, 0, len(s.Distribution)),
		StatusCounts: make([]int, 0, len(s.Distribution)),
		StatusShares: make([]float64, 0, len(s.Distribution)),
	}
	for _, p := range s.Series {
		c.Labels = append(c.Labels, p.Label)
		c.Values = append(c.Values, p.Value)
	}
	for _, sl := range s.Distribution {
		c.StatusLabels = append(c.StatusLabels, sl.Label)
		c.StatusCounts = append(c.StatusCounts, sl.Count)
		c.StatusShares = append(c.StatusShares, sl.Percent)
	}
	return c
}

// toJSON embeds v in a script element. encoding/json escapes <, > and &, so
// the output cannot close the element.
func toJSON(v any) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil
}

func formatValue(v *float64) string {
	if v == nil {
		return missing
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatOneDecimal(v *float64) string {
	if v == nil {
		return missing
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func formatTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return missing
		}
		return t.UTC().Format(timeLayout)
	case *time.Time:
		if t == nil || t.IsZero() {
			return missing
		}
		return t.UTC().Format(timeLayout)
	default:
		return missing
	}
}

// formatCell renders one field of a reading for the recent-records table.
func formatCell(r types.Reading, field string) string {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return missing
	}
	if field == types.FieldTimestamp {
		if t, ok := summary.ParseTimestamp(v); ok {
			return t.Format(timeLayout)
		}
	}
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return formatTime(t)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
	if f, ok := types.Number(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
