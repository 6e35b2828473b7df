package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResult(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		res, err := DecodeResult([]byte(`[{"id":"a","title":"Standup"},{"id":"b"}]`))
		require.NoError(t, err)
		assert.Len(t, res.Rows, 2)
		assert.Equal(t, 2, res.Total)
		assert.Equal(t, "Standup", res.Rows[0].Title)
	})

	t.Run("page object", func(t *testing.T) {
		res, err := DecodeResult([]byte(`{"rows":[{"id":"a"}],"total":42}`))
		require.NoError(t, err)
		assert.Len(t, res.Rows, 1)
		assert.Equal(t, 42, res.Total)
	})

	t.Run("leading whitespace", func(t *testing.T) {
		res, err := DecodeResult([]byte("\n\t [{\"id\":\"a\"}]"))
		require.NoError(t, err)
		assert.Len(t, res.Rows, 1)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := DecodeResult([]byte(`not json`))
		assert.Error(t, err)
	})
}

func TestHTTPDispatcher(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a"}]`))
	}))
	defer srv.Close()

	src := &RequestSource{Endpoint: srv.URL, Dispatcher: &HTTPDispatcher{Client: srv.Client()}}
	res, err := src.Fetch(context.Background(), Query{FromDate: "2024-03-11", ToDate: "2024-03-17", View: "week"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, "2024-03-11", gotQuery["fromDate"])
	assert.Equal(t, "week", gotQuery["view"])
}

func TestHTTPDispatcherNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := &RequestSource{Endpoint: srv.URL, Dispatcher: &HTTPDispatcher{Client: srv.Client()}}
	_, err := src.Fetch(context.Background(), Query{View: "week"})
	assert.Error(t, err)
}

func TestAbortable(t *testing.T) {
	assert.True(t, Abortable(&RequestSource{Endpoint: "http://example.invalid"}))
	assert.False(t, Abortable(Func(nil)))
}
