package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/bluesky-social/marshal/enforcer/notify"
	"github.com/bluesky-social/marshal/enforcer/store"
	"github.com/bluesky-social/marshal/models"
	"github.com/bluesky-social/marshal/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "marshal",
		Usage:   "moderation decision executor",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string for entity store and audit log",
			Value:   "sqlite://data/marshal/marshal.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "add opentelemetry spans to database queries",
			EnvVars: []string{"MARSHAL_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"MARSHAL_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format (text or json)",
			EnvVars: []string{"MARSHAL_LOG_FMT", "LOG_FMT"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		processCmd,
		migrateCmd,
		checkTemplatesCmd,
	}

	return app.Run(args)
}

// flags for everything needed to execute decisions and deliver notices
var engineFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "site-url",
		Usage:   "public base URL of the site, used for links in notices",
		Value:   "http://localhost:8000",
		EnvVars: []string{"MARSHAL_SITE_URL"},
	},
	&cli.StringFlag{
		Name:    "site-name",
		Usage:   "site name used in notice subjects",
		Value:   "Add-ons",
		EnvVars: []string{"MARSHAL_SITE_NAME"},
	},
	&cli.StringFlag{
		Name:    "from-address",
		Usage:   "sender address for notices",
		Value:   "moderation@localhost",
		EnvVars: []string{"MARSHAL_FROM_ADDRESS"},
	},
	&cli.StringFlag{
		Name:    "policy-document-url",
		Usage:   "link to the content policies, included in owner notices",
		EnvVars: []string{"MARSHAL_POLICY_DOCUMENT_URL"},
	},
	&cli.StringFlag{
		Name:    "gate-backend",
		Usage:   "where feature gates are read from: static, openfeature, or redis",
		Value:   "static",
		EnvVars: []string{"MARSHAL_GATE_BACKEND"},
	},
	&cli.StringSliceFlag{
		Name:    "gates",
		Usage:   "gates which are on, for the static backend",
		EnvVars: []string{"MARSHAL_GATES"},
	},
	&cli.StringFlag{
		Name:    "openfeature-domain",
		Usage:   "openfeature client domain, for the openfeature backend",
		Value:   "marshal",
		EnvVars: []string{"MARSHAL_OPENFEATURE_DOMAIN"},
	},
	&cli.StringFlag{
		Name:    "redis-url",
		Usage:   "redis connection URL, for the redis backend",
		EnvVars: []string{"MARSHAL_REDIS_URL", "REDIS_URL"},
	},
	&cli.StringFlag{
		Name:    "mail-relay-host",
		Usage:   "base URL of the HTTP mail relay",
		EnvVars: []string{"MARSHAL_MAIL_RELAY_HOST"},
	},
	&cli.BoolFlag{
		Name:    "dry-run",
		Usage:   "keep notices in memory and log them instead of sending",
		EnvVars: []string{"MARSHAL_DRY_RUN"},
	},
}

func configLogger(cctx *cli.Context) (*slog.Logger, error) {
	return cliutil.SetupSlog(cliutil.LogOptions{
		LogLevel:  cctx.String("log-level"),
		LogFormat: cctx.String("log-format"),
	})
}

func configDB(cctx *cli.Context, logger *slog.Logger) (*gorm.DB, error) {
	db, err := cliutil.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"), logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if cctx.Bool("db-tracing") {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, err
		}
	}
	return db, nil
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the decision execution service",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":2480",
			EnvVars: []string{"MARSHAL_BIND"},
		},
		&cli.BoolFlag{
			Name:    "auto-migrate",
			Usage:   "migrate the database schema on startup",
			EnvVars: []string{"MARSHAL_AUTO_MIGRATE"},
		},
	}, engineFlags...),
	Action: func(cctx *cli.Context) error {
		logger, err := configLogger(cctx)
		if err != nil {
			return err
		}
		shutdownOTEL, err := configOTEL("marshal")
		if err != nil {
			return err
		}
		defer shutdownOTEL()

		db, err := configDB(cctx, logger)
		if err != nil {
			return err
		}
		if cctx.Bool("auto-migrate") {
			if err := store.New(db, logger).Migrate(cctx.Context); err != nil {
				return err
			}
		}

		svc, err := NewService(cctx, db, logger)
		if err != nil {
			return err
		}
		srv := NewServer(svc, cctx.String("bind"))
		return srv.RunAPI()
	},
}

var processCmd = &cli.Command{
	Name:      "process",
	Usage:     "apply one or more stored decisions and exit",
	ArgsUsage: "<decision-id>...",
	Flags:     engineFlags,
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() < 1 {
			return fmt.Errorf("need at least one decision id")
		}
		ids := make([]uint, 0, cctx.Args().Len())
		for _, arg := range cctx.Args().Slice() {
			id, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid decision id %q: %w", arg, err)
			}
			ids = append(ids, uint(id))
		}

		logger, err := configLogger(cctx)
		if err != nil {
			return err
		}
		shutdownOTEL, err := configOTEL("marshal")
		if err != nil {
			return err
		}
		defer shutdownOTEL()

		db, err := configDB(cctx, logger)
		if err != nil {
			return err
		}
		svc, err := NewService(cctx, db, logger)
		if err != nil {
			return err
		}

		var errs []error
		for _, id := range ids {
			if err := svc.Process(cctx.Context, id); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	},
}

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "create or update the database schema",
	Action: func(cctx *cli.Context) error {
		logger, err := configLogger(cctx)
		if err != nil {
			return err
		}
		db, err := configDB(cctx, logger)
		if err != nil {
			return err
		}
		if err := store.New(db, logger).Migrate(cctx.Context); err != nil {
			return err
		}
		logger.Info("schema migrated", "tables", len(models.AllModels()))
		return nil
	},
}

var checkTemplatesCmd = &cli.Command{
	Name:  "check-templates",
	Usage: "compile every notice template and report problems",
	Action: func(cctx *cli.Context) error {
		logger, err := configLogger(cctx)
		if err != nil {
			return err
		}
		n, err := notify.NewNotifier(notify.Config{}, nil, nil, nil, logger)
		if err != nil {
			return err
		}
		if err := n.CheckTemplates(); err != nil {
			return err
		}
		fmt.Fprintln(cctx.App.Writer, "all templates compiled")
		return nil
	},
}
