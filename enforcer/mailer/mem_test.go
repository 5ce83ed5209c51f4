package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/bluesky-social/marshal/models"

	"github.com/stretchr/testify/assert"
)

func TestMemSender(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemSender()
	assert.NoError(s.Send(ctx, Message{Subject: "one", Recipients: []string{"a@example.com"}}))
	v := &models.Version{ID: 3, Number: "1.0"}
	assert.NoError(s.SendThroughIntegrationChannel(ctx, Message{Subject: "two"}, v, "mod@example.com", "3-42"))

	msgs := s.Messages()
	assert.Len(msgs, 2)
	assert.Nil(msgs[0].Version)
	assert.Equal(v, msgs[1].Version)
	assert.Equal("3-42", msgs[1].DedupToken)

	s.Reset()
	assert.Empty(s.Messages())

	s.Err = errors.New("relay down")
	assert.Error(s.Send(ctx, Message{Subject: "three"}))
	assert.Empty(s.Messages())
}
