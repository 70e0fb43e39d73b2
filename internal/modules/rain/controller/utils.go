package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultReadingsLimit = 100
	maxReadingsLimit     = 1000
	dateLayout           = "2006-01-02"
)

// readingsQuery is the parsed query of GET /api/v1/readings. A zero From or
// To leaves that side of the range open.
type readingsQuery struct {
	From  time.Time
	To    time.Time
	Limit int
}

// parseReadingsQuery accepts RFC3339 instants or plain UTC dates. A plain
// date in "to" covers that whole day.
func parseReadingsQuery(r *http.Request) (readingsQuery, error) {
	q := r.URL.Query()
	rq := readingsQuery{Limit: defaultReadingsLimit}

	var err error
	if rq.From, err = parseBound(q.Get("from"), false); err != nil {
		return readingsQuery{}, errors.New("invalid 'from' (expected RFC3339 or YYYY-MM-DD)")
	}
	if rq.To, err = parseBound(q.Get("to"), true); err != nil {
		return readingsQuery{}, errors.New("invalid 'to' (expected RFC3339 or YYYY-MM-DD)")
	}
	if !rq.From.IsZero() && !rq.To.IsZero() && rq.From.After(rq.To) {
		return readingsQuery{}, errors.New("'from' must be <= 'to'")
	}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		switch {
		case err != nil:
			return readingsQuery{}, errors.New("invalid 'limit' (expected integer)")
		case n <= 0:
			return readingsQuery{}, errors.New("'limit' must be > 0")
		case n > maxReadingsLimit:
			return readingsQuery{}, fmt.Errorf("'limit' must be <= %d", maxReadingsLimit)
		}
		rq.Limit = n
	}
	return rq, nil
}

func parseBound(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return d, nil
}

func refreshSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
