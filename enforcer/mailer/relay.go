package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bluesky-social/marshal/models"
	"github.com/bluesky-social/marshal/util"
)

// RelaySender hands messages to an HTTP mail relay, which owns actual delivery.
// Transient relay failures are retried by the HTTP client.
type RelaySender struct {
	Host        string
	DefaultFrom string
	Client      *http.Client
	Logger      *slog.Logger
}

func NewRelaySender(host, defaultFrom string) *RelaySender {
	return &RelaySender{
		Host:        strings.TrimSuffix(host, "/"),
		DefaultFrom: defaultFrom,
		Client:      util.RobustHTTPClient(),
		Logger:      slog.Default().With("system", "mailer"),
	}
}

type relayThread struct {
	ContentItemID uint   `json:"contentItemId"`
	VersionID     uint   `json:"versionId"`
	VersionNumber string `json:"versionNumber"`
}

type relayRequest struct {
	Subject string       `json:"subject"`
	Body    string       `json:"body"`
	To      []string     `json:"to"`
	From    string       `json:"from,omitempty"`
	Thread  *relayThread `json:"thread,omitempty"`
}

func (s *RelaySender) Send(ctx context.Context, msg Message) error {
	return s.post(ctx, "/send", relayRequest{
		Subject: msg.Subject,
		Body:    msg.Body,
		To:      msg.Recipients,
		From:    s.DefaultFrom,
	}, "")
}

func (s *RelaySender) SendThroughIntegrationChannel(ctx context.Context, msg Message, version *models.Version, from, dedupToken string) error {
	if version == nil {
		return fmt.Errorf("integration channel message needs a version")
	}
	if from == "" {
		from = s.DefaultFrom
	}
	return s.post(ctx, "/activity", relayRequest{
		Subject: msg.Subject,
		Body:    msg.Body,
		To:      msg.Recipients,
		From:    from,
		Thread: &relayThread{
			ContentItemID: version.ContentItemID,
			VersionID:     version.ID,
			VersionNumber: version.Number,
		},
	}, dedupToken)
}

func (s *RelaySender) post(ctx context.Context, path string, body relayRequest, dedupToken string) error {
	if len(body.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Host+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if dedupToken != "" {
		req.Header.Set("Idempotency-Key", dedupToken)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("mail relay request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail relay rejected message: status=%d body=%q", resp.StatusCode, string(msg))
	}
	s.Logger.Debug("message handed to relay", "path", path, "recipients", len(body.To))
	return nil
}
