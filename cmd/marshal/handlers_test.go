package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bluesky-social/marshal/enforcer/action"
	"github.com/bluesky-social/marshal/enforcer/notify"
	"github.com/bluesky-social/marshal/enforcer/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	results   map[uint]error
	processed []uint
	pingErr   error
}

func (p *fakeProcessor) Process(ctx context.Context, id uint) error {
	p.processed = append(p.processed, id)
	return p.results[id]
}

func (p *fakeProcessor) Ping(ctx context.Context) error {
	return p.pingErr
}

// the prometheus middleware registers collectors globally, so only one server is built
func TestServer(t *testing.T) {
	proc := &fakeProcessor{
		results: map[uint]error{
			2: fmt.Errorf("loading decision 2: %w", store.ErrNotFound),
			3: &action.ConfigurationError{Reason: "ban_account cannot target content_item"},
			4: fmt.Errorf("reject_version: %w", action.ErrUnsupportedOperation),
			5: errors.Join(&notify.DeliveryError{Path: "owner", Err: errors.New("relay down")}),
			6: errors.New("database is locked"),
		},
	}
	srv := NewServer(proc, ":0")

	do := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}

	t.Run("process", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)

		rec := do(http.MethodPost, "/decisions/1/process")
		assert.Equal(http.StatusOK, rec.Code)
		var out DecisionStatus
		require.NoError(json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(uint(1), out.DecisionID)
		assert.Equal("ok", out.Status)

		// error responses are a single JSON document
		rec = do(http.MethodPost, "/decisions/2/process")
		assert.Equal(http.StatusNotFound, rec.Code)
		var notFound GenericStatus
		require.NoError(json.Unmarshal(rec.Body.Bytes(), &notFound))
		assert.Equal("error", notFound.Status)
		assert.Equal(1, strings.Count(rec.Body.String(), `"daemon"`))
		assert.Equal(http.StatusUnprocessableEntity, do(http.MethodPost, "/decisions/3/process").Code)
		assert.Equal(http.StatusUnprocessableEntity, do(http.MethodPost, "/decisions/4/process").Code)

		rec = do(http.MethodPost, "/decisions/5/process")
		assert.Equal(http.StatusBadGateway, rec.Code)
		require.NoError(json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal("notification-failed", out.Status)

		rec = do(http.MethodPost, "/decisions/6/process")
		assert.Equal(http.StatusInternalServerError, rec.Code)
		var status GenericStatus
		require.NoError(json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal("error", status.Status)
		assert.Equal(1, strings.Count(rec.Body.String(), `"daemon"`))

		assert.Equal([]uint{1, 2, 3, 4, 5, 6}, proc.processed)
	})

	t.Run("bad id", func(t *testing.T) {
		assert := assert.New(t)
		before := len(proc.processed)
		assert.Equal(http.StatusBadRequest, do(http.MethodPost, "/decisions/abc/process").Code)
		assert.Equal(http.StatusBadRequest, do(http.MethodPost, "/decisions/0/process").Code)
		assert.Equal(http.StatusMethodNotAllowed, do(http.MethodGet, "/decisions/1/process").Code)
		assert.Len(proc.processed, before)
	})

	t.Run("health", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)

		rec := do(http.MethodGet, "/_health")
		assert.Equal(http.StatusOK, rec.Code)
		var out HealthStatus
		require.NoError(json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal("ok", out.Status)

		proc.pingErr = errors.New("connection refused")
		defer func() { proc.pingErr = nil }()
		rec = do(http.MethodGet, "/_health")
		assert.Equal(http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := do(http.MethodGet, "/metrics")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "marshal_requests_total")
	})
}
