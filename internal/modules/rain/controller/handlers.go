package controller

import (
	"bytes"
	"net/http"
	"time"

	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/types"
	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/views"
	"github.com/anisahjamin/CPC357-Assignment2/internal/utils"
)

type readingsResponse struct {
	From  *time.Time      `json:"from"`
	To    *time.Time      `json:"to"`
	Limit int             `json:"limit"`
	Count int             `json:"count"`
	Items []types.Reading `json:"items"`
}

func (c *rainControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data, ok := c.pageData(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, data); err != nil {
		c.logger.Error("dashboard template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	c.writeHTML(w, buf.Bytes())
}

func (c *rainControllerImpl) handleSummaryPartial(w http.ResponseWriter, r *http.Request) {
	data, ok := c.pageData(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := views.RenderSummaryPartial(&buf, data); err != nil {
		c.logger.Error("summary partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	c.writeHTML(w, buf.Bytes())
}

func (c *rainControllerImpl) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := c.summaries.Summary(r.Context())
	if err != nil {
		c.logger.Error("summary: load failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}
	utils.WriteJSON(w, http.StatusOK, sum)
}

func (c *rainControllerImpl) handleReadings(w http.ResponseWriter, r *http.Request) {
	q, err := parseReadingsQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	readings, err := c.repository.Readings(r.Context(), q.From, q.To, q.Limit)
	if err != nil {
		c.logger.Error("readings: load failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	if readings == nil {
		readings = []types.Reading{}
	}

	utils.WriteJSON(w, http.StatusOK, readingsResponse{
		From:  utils.NullableTime(q.From),
		To:    utils.NullableTime(q.To),
		Limit: q.Limit,
		Count: len(readings),
		Items: readings,
	})
}

// pageData loads the summary for a page or partial. On failure it writes
// the error response and reports false.
func (c *rainControllerImpl) pageData(w http.ResponseWriter, r *http.Request) (*views.DashboardData, bool) {
	sum, err := c.summaries.Summary(r.Context())
	if err != nil {
		c.logger.Error("dashboard: load summary failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return nil, false
	}
	return &views.DashboardData{
		Title:          c.page.Title,
		Collection:     c.repository.Collection(),
		RefreshSeconds: refreshSeconds(c.page.Refresh),
		Summary:        sum,
	}, true
}

func (c *rainControllerImpl) writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(body); err != nil {
		c.logger.Error("write response failed", "error", err)
	}
}
