// Package mailer delivers notification messages.
package mailer

import (
	"context"

	"github.com/bluesky-social/marshal/models"
)

type Message struct {
	Subject    string
	Body       string
	Recipients []string
}

type Sender interface {
	// Send mails the message directly to every recipient.
	Send(ctx context.Context, msg Message) error
	// SendThroughIntegrationChannel mails the message so that it threads into the activity record of the
	// given content item version. dedupToken lets the channel drop repeated deliveries of the same notice.
	SendThroughIntegrationChannel(ctx context.Context, msg Message, version *models.Version, from, dedupToken string) error
}
