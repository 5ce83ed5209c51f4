package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bluesky-social/marshal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelaySender(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	var gotPath, gotKey string
	var got relayRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewRelaySender(srv.URL+"/", "notices@example.com")
	require.NoError(s.Send(ctx, Message{Subject: "hi", Body: "body", Recipients: []string{"a@example.com"}}))
	assert.Equal("/send", gotPath)
	assert.Equal("", gotKey)
	assert.Equal([]string{"a@example.com"}, got.To)
	assert.Equal("notices@example.com", got.From)
	assert.Nil(got.Thread)

	v := &models.Version{ID: 7, ContentItemID: 3, Number: "1.2"}
	require.NoError(s.SendThroughIntegrationChannel(ctx, Message{Subject: "hi", Body: "b", Recipients: []string{"a@example.com", "b@example.com"}}, v, "reviews@example.com", "42"))
	assert.Equal("/activity", gotPath)
	assert.Equal("42", gotKey)
	assert.Equal("reviews@example.com", got.From)
	require.NotNil(got.Thread)
	assert.Equal(uint(7), got.Thread.VersionID)
	assert.Equal("1.2", got.Thread.VersionNumber)
}

func TestRelaySenderErrors(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewRelaySender(srv.URL, "notices@example.com")
	assert.Error(s.Send(ctx, Message{Subject: "hi", Recipients: []string{"a@example.com"}}))
	assert.Error(s.Send(ctx, Message{Subject: "no recipients"}))
	assert.Error(s.SendThroughIntegrationChannel(ctx, Message{Recipients: []string{"a@example.com"}}, nil, "", ""))
}
