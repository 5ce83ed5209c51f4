// Package gate provides read-only boolean switches which turn optional behaviour on or off.
package gate

import (
	"context"
	"strings"
)

const (
	// queue escalated content items for human review
	EscalationsReview = "escalations-review"
	// offer owners an appeal link for first-party decisions too
	AppealsReview = "appeals-review"
)

type Gate interface {
	IsActive(ctx context.Context, name string) bool
}

// Static is a fixed set of gates, configured at startup.
type Static map[string]bool

func NewStatic(active ...string) Static {
	s := make(Static, len(active))
	for _, name := range active {
		name = strings.TrimSpace(name)
		if name != "" {
			s[name] = true
		}
	}
	return s
}

func (s Static) IsActive(ctx context.Context, name string) bool {
	return s[name]
}
