package mailer

import (
	"context"
	"sync"

	"github.com/bluesky-social/marshal/models"
)

type SentMessage struct {
	Message
	// only set for integration channel messages
	Version    *models.Version
	From       string
	DedupToken string
}

// MemSender keeps messages in memory instead of delivering them. Used for
// tests and dry runs.
type MemSender struct {
	lk   sync.Mutex
	Sent []SentMessage
	// when set, every send fails with this error
	Err error
}

func NewMemSender() *MemSender {
	return &MemSender{}
}

func (s *MemSender) Send(ctx context.Context, msg Message) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Sent = append(s.Sent, SentMessage{Message: msg})
	return nil
}

func (s *MemSender) SendThroughIntegrationChannel(ctx context.Context, msg Message, version *models.Version, from, dedupToken string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Sent = append(s.Sent, SentMessage{Message: msg, Version: version, From: from, DedupToken: dedupToken})
	return nil
}

func (s *MemSender) Messages() []SentMessage {
	s.lk.Lock()
	defer s.lk.Unlock()
	out := make([]SentMessage, len(s.Sent))
	copy(out, s.Sent)
	return out
}

// Reset drops every kept message.
func (s *MemSender) Reset() {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.Sent = nil
}
