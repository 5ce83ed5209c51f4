package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluesky-social/marshal/enforcer/cachestore"
	"github.com/bluesky-social/marshal/enforcer/engine"
	"github.com/bluesky-social/marshal/enforcer/gate"
	"github.com/bluesky-social/marshal/enforcer/mailer"
	"github.com/bluesky-social/marshal/enforcer/notify"
	"github.com/bluesky-social/marshal/enforcer/siteurl"
	"github.com/bluesky-social/marshal/enforcer/store"

	cli "github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

// Service ties the engine to its collaborators. Shared by the HTTP API and
// the one-shot CLI command.
type Service struct {
	db     *gorm.DB
	engine *engine.Engine
	logger *slog.Logger
	// only set for dry runs
	outbox *mailer.MemSender
}

func configGates(cctx *cli.Context, logger *slog.Logger) (gate.Gate, error) {
	switch backend := cctx.String("gate-backend"); backend {
	case "", "static":
		return gate.NewStatic(cctx.StringSlice("gates")...), nil
	case "openfeature":
		return gate.NewOpenFeature(cctx.String("openfeature-domain"), logger), nil
	case "redis":
		if cctx.String("redis-url") == "" {
			return nil, fmt.Errorf("redis gate backend requires --redis-url")
		}
		// gate values are small and change rarely
		cache := cachestore.NewMemGateCache(1_000, 30*time.Second)
		return gate.NewRedis(cctx.String("redis-url"), cache, logger)
	default:
		return nil, fmt.Errorf("unknown gate backend: %s", backend)
	}
}

func NewService(cctx *cli.Context, db *gorm.DB, logger *slog.Logger) (*Service, error) {
	urls, err := siteurl.NewBuilder(cctx.String("site-url"))
	if err != nil {
		return nil, err
	}
	gates, err := configGates(cctx, logger)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		db:     db,
		logger: logger,
	}

	var sender mailer.Sender
	switch {
	case cctx.Bool("dry-run"):
		svc.outbox = mailer.NewMemSender()
		sender = svc.outbox
	case cctx.String("mail-relay-host") != "":
		relay := mailer.NewRelaySender(cctx.String("mail-relay-host"), cctx.String("from-address"))
		relay.Logger = logger.With("system", "mailer")
		sender = relay
	default:
		return nil, fmt.Errorf("no mail relay configured; set --mail-relay-host or --dry-run")
	}

	notifier, err := notify.NewNotifier(notify.Config{
		SiteName:          cctx.String("site-name"),
		FromAddress:       cctx.String("from-address"),
		PolicyDocumentURL: cctx.String("policy-document-url"),
	}, sender, urls, gates, logger)
	if err != nil {
		return nil, err
	}
	if err := notifier.CheckTemplates(); err != nil {
		return nil, err
	}

	st := store.New(db, logger)
	svc.engine = &engine.Engine{
		Logger:   logger,
		Loader:   st,
		Store:    st,
		Audit:    st,
		Gates:    gates,
		Notifier: notifier,
	}
	return svc, nil
}

// Process applies one decision. For dry runs the notices which would have
// been sent are logged.
func (svc *Service) Process(ctx context.Context, id uint) error {
	entry, err := svc.engine.ProcessDecision(ctx, id)
	if entry != nil {
		svc.logger.Info("decision applied", "decisionID", id, "auditEntry", entry.ID, "action", entry.Action)
	}
	if svc.outbox != nil {
		for _, msg := range svc.outbox.Messages() {
			svc.logger.Info("dry run notice", "decisionID", id, "to", msg.Recipients, "subject", msg.Subject, "integration", msg.Version != nil)
		}
		svc.outbox.Reset()
	}
	return err
}

// Ping checks the database connection.
func (svc *Service) Ping(ctx context.Context) error {
	sqldb, err := svc.db.DB()
	if err != nil {
		return err
	}
	return sqldb.PingContext(ctx)
}
