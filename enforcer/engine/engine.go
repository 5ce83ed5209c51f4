// Package engine applies stored moderation decisions: it loads a decision, runs its action, and sends
// the resulting notices.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluesky-social/marshal/enforcer/action"
	"github.com/bluesky-social/marshal/enforcer/gate"
	"github.com/bluesky-social/marshal/enforcer/notify"
	"github.com/bluesky-social/marshal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("engine")

type Loader interface {
	LoadDecision(ctx context.Context, id uint) (*action.Decision, error)
}

type Notifier interface {
	NotifyOwners(ctx context.Context, act action.Action, notice notify.OwnerNotice) error
	NotifyReporters(ctx context.Context, act action.Action, reports []*models.Report, isAppeal bool) error
}

// Engine executes decisions. All fields are required except Logger.
type Engine struct {
	Logger   *slog.Logger
	Loader   Loader
	Store    action.Store
	Audit    action.AuditLog
	Gates    gate.Gate
	Notifier Notifier
}

// ProcessDecision applies one decision and notifies everyone concerned. It is safe to call again for a
// decision which was already applied: the state change and its audit entry happen only once.
//
// Notification failures are returned, but the state change they follow is not undone.
func (eng *Engine) ProcessDecision(ctx context.Context, id uint) (entry *models.AuditLogEntry, err error) {
	ctx, span := tracer.Start(ctx, "ProcessDecision", trace.WithAttributes(attribute.Int64("decision.id", int64(id))))
	defer span.End()

	logger := eng.logger().With("decisionID", id)
	// similar to an HTTP server, we want to recover any panics from action execution
	defer func() {
		if r := recover(); r != nil {
			logger.Error("decision execution exception", "err", r)
			err = fmt.Errorf("decision %d: panic: %v", id, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	start := time.Now()
	dec, err := eng.Loader.LoadDecision(ctx, id)
	if err != nil {
		decisionErrorCount.WithLabelValues("unknown", "load").Inc()
		return nil, fmt.Errorf("loading decision %d: %w", id, err)
	}
	outcome := string(dec.Outcome)
	span.SetAttributes(attribute.String("decision.outcome", outcome), attribute.String("target.kind", dec.Target.Kind()))
	logger = logger.With("decision", dec.ReferenceID(), "outcome", outcome)

	act, err := action.New(dec, action.Deps{
		Store:  eng.Store,
		Audit:  eng.Audit,
		Gates:  eng.Gates,
		Logger: logger,
	})
	if err != nil {
		logger.Error("decision can't be executed", "err", err)
		decisionErrorCount.WithLabelValues(outcome, "config").Inc()
		return nil, err
	}

	entry, err = act.Process(ctx)
	if err != nil {
		if action.IsConfigurationError(err) || errors.Is(err, action.ErrUnsupportedOperation) {
			logger.Error("decision can't be executed", "err", err)
			decisionErrorCount.WithLabelValues(outcome, "config").Inc()
		} else {
			logger.Warn("failed to apply decision", "err", err)
			decisionErrorCount.WithLabelValues(outcome, "process").Inc()
		}
		return nil, err
	}

	notice := notify.OwnerNotice{}
	if entry != nil {
		notice.LogEntryID = entry.ID
		logger.Info("applied decision", "action", entry.Action, "entry", entry.ID)
	} else {
		logger.Info("decision applied without a state change")
	}

	var errs []error
	if err := eng.Notifier.NotifyOwners(ctx, act, notice); err != nil {
		if action.IsConfigurationError(err) {
			logger.Error("owner notification misconfigured", "err", err)
			decisionErrorCount.WithLabelValues(outcome, "config").Inc()
			return entry, err
		}
		logger.Warn("failed to notify owners", "err", err)
		errs = append(errs, err)
	}
	if err := eng.Notifier.NotifyReporters(ctx, act, dec.Reports, dec.IsAppeal()); err != nil {
		if action.IsConfigurationError(err) {
			logger.Error("reporter notification misconfigured", "err", err)
			decisionErrorCount.WithLabelValues(outcome, "config").Inc()
			return entry, err
		}
		logger.Warn("failed to notify reporters", "err", err)
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		decisionErrorCount.WithLabelValues(outcome, "notify").Inc()
		return entry, errors.Join(errs...)
	}

	decisionProcessedCount.WithLabelValues(outcome).Inc()
	decisionProcessDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return entry, nil
}

func (eng *Engine) logger() *slog.Logger {
	if eng.Logger != nil {
		return eng.Logger
	}
	return slog.Default().With("system", "engine")
}
