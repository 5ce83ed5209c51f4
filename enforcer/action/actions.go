package action

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bluesky-social/marshal/models"

	"golang.org/x/text/message"
)

// base carries what every implementation shares.
type base struct {
	dec         *Decision
	deps        Deps
	description string
	logger      *slog.Logger
}

func (b *base) Outcome() Outcome                     { return b.dec.Outcome }
func (b *base) Description() string                  { return b.description }
func (b *base) Decision() *Decision                  { return b.dec }
func (b *base) Target() Target                       { return b.dec.Target }
func (b *base) TargetName(p *message.Printer) string { return b.dec.Target.Name(p) }
func (b *base) TargetType(p *message.Printer) string { return b.dec.Target.TypeLabel(p) }
func (b *base) ContentVersion() *models.Version      { return b.dec.Target.Version() }

func (b *base) record(ctx context.Context, code models.AuditCode, subjects []models.Subject, details map[string]any) (*models.AuditLogEntry, error) {
	entry, err := b.deps.Audit.Record(ctx, code, subjects, details)
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", code, err)
	}
	return entry, nil
}

// takedownAction bans, disables or deletes the target.
type takedownAction struct {
	base
}

func (a *takedownAction) Process(ctx context.Context) (*models.AuditLogEntry, error) {
	t := a.dec.Target
	if t.TakenDown() {
		a.logger.Debug("target already taken down")
		return nil, nil
	}
	changed, err := t.takedown(ctx, a.deps.Store)
	if err != nil {
		return nil, fmt.Errorf("taking down %s: %w", t.Subject(), err)
	}
	if !changed {
		// lost a race with another writer
		a.logger.Info("takedown was a no-op", "subject", t.Subject())
		return nil, nil
	}
	return a.record(ctx, t.takedownCode(), []models.Subject{t.Subject()}, nil)
}

func (a *takedownAction) Owners() []*models.Account {
	return a.dec.Target.Owners()
}

// reverseAction undoes an earlier takedown after a successful appeal or an override.
type reverseAction struct {
	base
}

func (a *reverseAction) Process(ctx context.Context) (*models.AuditLogEntry, error) {
	t := a.dec.Target
	if !t.TakenDown() {
		a.logger.Debug("target is not taken down")
		return nil, nil
	}
	changed, err := t.restore(ctx, a.deps.Store)
	if err != nil {
		return nil, fmt.Errorf("restoring %s: %w", t.Subject(), err)
	}
	if !changed {
		a.logger.Info("restore was a no-op", "subject", t.Subject())
		return nil, nil
	}
	return a.record(ctx, t.restoreCode(), []models.Subject{t.Subject()}, nil)
}

func (a *reverseAction) Owners() []*models.Account {
	return a.dec.Target.Owners()
}

// rejectVersionAction is only ever applied by reviewer tooling, which rejects the versions itself.
// Owners are still listed so the notice can be rendered.
type rejectVersionAction struct {
	base
}

func (a *rejectVersionAction) Process(ctx context.Context) (*models.AuditLogEntry, error) {
	return nil, fmt.Errorf("%w: %s is applied by reviewer tools", ErrUnsupportedOperation, a.dec.Outcome)
}

func (a *rejectVersionAction) Owners() []*models.Account {
	return a.dec.Target.Owners()
}

type escalateAction struct {
	base
}

func (a *escalateAction) Process(ctx context.Context) (*models.AuditLogEntry, error) {
	// the flagger records its own entry, covering the flagged versions rather than the item
	if err := a.flagForHumanReview(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

func (a *escalateAction) Owners() []*models.Account {
	return nil
}

// noopAction changes nothing. It still notifies, if it has anyone to notify.
type noopAction struct {
	base
	notifyOwners bool
}

func (a *noopAction) Process(ctx context.Context) (*models.AuditLogEntry, error) {
	return nil, nil
}

func (a *noopAction) Owners() []*models.Account {
	if !a.notifyOwners {
		return nil
	}
	return a.dec.Target.Owners()
}
