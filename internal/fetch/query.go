package fetch

import (
	"net/url"
	"strconv"

	"calwidget/internal/log"
)

// Query is the request shape handed to a data source. Non-search requests
// carry FromDate/ToDate/View (or Year/View for the year view); search
// requests carry Limit/Offset/Search.
type Query struct {
	FromDate string
	ToDate   string
	Year     int
	View     string
	Limit    int
	Offset   int
	Search   string
	// Extra carries host-supplied parameters added by the augmentation
	// hook. Protected keys are stripped before dispatch.
	Extra map[string]string
}

// IsSearch reports whether this is a search-mode query.
func (q Query) IsSearch() bool {
	return q.Search != "" || q.Limit > 0
}

// protectedKeys are owned by the coordinator; an augmentation hook may add
// parameters but never overwrite these.
var protectedKeys = map[string]bool{
	"fromDate": true,
	"toDate":   true,
	"year":     true,
	"view":     true,
}

// applyExtra merges host parameters into the query, dropping protected keys.
func (q *Query) applyExtra(extra map[string]string) {
	if len(extra) == 0 {
		return
	}
	if q.Extra == nil {
		q.Extra = make(map[string]string, len(extra))
	}
	for k, v := range extra {
		if protectedKeys[k] {
			log.Debug("fetch: augmentation hook tried to overwrite protected key", "key", k)
			continue
		}
		q.Extra[k] = v
	}
}

// Values renders the query as URL parameters for request-backed sources.
func (q Query) Values() url.Values {
	v := url.Values{}
	for k, val := range q.Extra {
		v.Set(k, val)
	}
	if q.IsSearch() {
		v.Set("limit", strconv.Itoa(q.Limit))
		v.Set("offset", strconv.Itoa(q.Offset))
		v.Set("search", q.Search)
		return v
	}
	if q.Year != 0 {
		v.Set("year", strconv.Itoa(q.Year))
	} else {
		v.Set("fromDate", q.FromDate)
		v.Set("toDate", q.ToDate)
	}
	v.Set("view", q.View)
	return v
}
