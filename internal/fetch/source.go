package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"calwidget/internal/model"
)

// Source supplies appointment rows for a query.
type Source interface {
	Fetch(ctx context.Context, q Query) (model.Result, error)
}

// Func adapts a plain callback to Source. Callback sources cannot truly be
// aborted mid-flight; the coordinator falls back to last-applied-wins for
// their results.
type Func func(ctx context.Context, q Query) (model.Result, error)

func (f Func) Fetch(ctx context.Context, q Query) (model.Result, error) {
	return f(ctx, q)
}

// Request is a request descriptor: an endpoint plus the query to send.
type Request struct {
	Endpoint string
	Query    Query
}

// Dispatcher resolves request descriptors. The default implementation talks
// HTTP; tests inject fakes.
type Dispatcher interface {
	Do(ctx context.Context, req Request) (model.Result, error)
}

// RequestSource binds an endpoint to a dispatcher, forming an abortable
// Source: cancelling the context aborts the underlying request.
type RequestSource struct {
	Endpoint   string
	Dispatcher Dispatcher
}

func (s *RequestSource) Fetch(ctx context.Context, q Query) (model.Result, error) {
	d := s.Dispatcher
	if d == nil {
		d = DefaultDispatcher
	}
	return d.Do(ctx, Request{Endpoint: s.Endpoint, Query: q})
}

// Abortable reports whether cancelling an in-flight fetch actually aborts
// work in the source, as opposed to merely discarding the result.
func Abortable(s Source) bool {
	_, ok := s.(*RequestSource)
	return ok
}

// HTTPDispatcher issues GET requests with the query encoded as URL
// parameters and decodes either a bare JSON array of appointments or a
// {rows, total} page object.
type HTTPDispatcher struct {
	Client *http.Client
}

// DefaultDispatcher is used when a RequestSource has no explicit dispatcher.
var DefaultDispatcher Dispatcher = &HTTPDispatcher{Client: http.DefaultClient}

func (d *HTTPDispatcher) Do(ctx context.Context, req Request) (model.Result, error) {
	if req.Endpoint == "" {
		return model.Result{}, errors.New("request source has no endpoint")
	}

	u := req.Endpoint
	if params := req.Query.Values().Encode(); params != "" {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + params
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Result{}, err
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return model.Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Result{}, fmt.Errorf("appointment request failed: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Result{}, err
	}
	return DecodeResult(body)
}

// DecodeResult accepts the two wire shapes a backend may answer with: a bare
// appointment array, or a page object {rows, total}.
func DecodeResult(body []byte) (model.Result, error) {
	trimmed := strings.TrimLeftFunc(string(body), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if strings.HasPrefix(trimmed, "[") {
		var rows []model.Appointment
		if err := json.Unmarshal(body, &rows); err != nil {
			return model.Result{}, fmt.Errorf("decoding appointment list: %w", err)
		}
		return model.Result{Rows: rows, Total: len(rows)}, nil
	}

	var page struct {
		Rows  []model.Appointment `json:"rows"`
		Total int                 `json:"total"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return model.Result{}, fmt.Errorf("decoding appointment page: %w", err)
	}
	return model.Result{Rows: page.Rows, Total: page.Total}, nil
}
