package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eventreg/internal/columns"
	"eventreg/internal/config"
	"eventreg/internal/logger"
	"eventreg/internal/metrics"
	"eventreg/internal/models"
	"eventreg/internal/sheets"
	"eventreg/internal/sheetsync"
	"eventreg/internal/storage"
	"eventreg/internal/storage/sqlite"
	"eventreg/internal/tgbot"
	"eventreg/internal/verify"
)

func main() {
	if err := execute(&deps{}, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// execute runs one command line. The database and the logger are released
// whether or not the command succeeds.
func execute(d *deps, args []string, stdout, stderr io.Writer) error {
	defer d.close()
	cmd := rootCmd(d)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

// deps is built once per invocation before any subcommand runs.
type deps struct {
	cfg      config.Config
	log      *zap.Logger
	store    storage.Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func rootCmd(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "eventreg",
		Short:         "Event registration sync between Google Sheets and the local database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return d.init()
		},
	}

	cmd.AddCommand(
		serveCmd(d),
		pullCmd(d),
		pushCmd(d),
		mailCmd(d),
		confirmCmd(d),
		listCmd(d),
		badgesCmd(d),
		eventCmd(d),
		mailTextCmd(d),
		questionCmd(d),
	)
	return cmd
}

func (d *deps) init() error {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	d.cfg = cfg

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	d.log = log

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	d.store = store

	d.registry = prometheus.NewRegistry()
	d.metrics = metrics.New(d.registry)
	return nil
}

func (d *deps) close() {
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.log.Warn("Failed to close database", zap.Error(err))
		}
	}
	if d.log != nil {
		_ = d.log.Sync()
	}
}

func (d *deps) event(ctx context.Context, ref string) (*models.Event, error) {
	ev, err := d.store.FindEvent(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", ref, err)
	}
	return ev, nil
}

func (d *deps) mapper() (*columns.Mapper, error) {
	if d.cfg.ColumnMapFile == "" {
		return columns.Default(), nil
	}
	return columns.LoadFile(d.cfg.ColumnMapFile)
}

// syncer connects to the Sheets API. notifier may be nil.
func (d *deps) syncer(ctx context.Context, notifier sheetsync.Notifier) (*sheetsync.Syncer, error) {
	if err := d.cfg.RequireSheets(); err != nil {
		return nil, err
	}
	client, err := sheets.New(ctx, d.cfg.GoogleServiceAccountJSON)
	if err != nil {
		return nil, fmt.Errorf("sheets: %w", err)
	}
	mapper, err := d.mapper()
	if err != nil {
		return nil, fmt.Errorf("column map: %w", err)
	}
	carry, err := sheetsync.ParseCarryOverKey(d.cfg.CarryOverKey)
	if err != nil {
		return nil, err
	}
	return sheetsync.New(client, d.store, mapper, sheetsync.Options{
		PageSize:         d.cfg.SheetPageSize,
		LastColumn:       d.cfg.SheetLastColumn,
		StatusVerified:   d.cfg.StatusVerified,
		StatusUnverified: d.cfg.StatusUnverified,
		CarryOver:        carry,
		Metrics:          d.metrics,
		Notifier:         notifier,
	}, d.log), nil
}

// bot starts a Telegram client when a token is configured, nil otherwise.
func (d *deps) bot(verifier tgbot.Verifier) *tgbot.App {
	if d.cfg.TelegramToken == "" {
		return nil
	}
	app, err := tgbot.New(d.cfg, d.store, nil, verifier, d.log)
	if err != nil {
		d.log.Warn("Telegram disabled", zap.Error(err))
		return nil
	}
	return app
}

// notifier is the operator channel for one-shot commands, nil without a bot token.
func (d *deps) notifier() sheetsync.Notifier {
	if d.cfg.TelegramToken == "" {
		return nil
	}
	return &lazyNotifier{connect: func() sheetsync.Notifier {
		if app := d.bot(nil); app != nil {
			return app
		}
		return nil
	}}
}

// lazyNotifier connects on the first notification, so a pull or push never waits
// on Telegram before it reaches the sheet.
type lazyNotifier struct {
	once    sync.Once
	connect func() sheetsync.Notifier
	target  sheetsync.Notifier
}

func (n *lazyNotifier) Notify(ctx context.Context, text string) error {
	n.once.Do(func() { n.target = n.connect() })
	if n.target == nil {
		return nil
	}
	return n.target.Notify(ctx, text)
}

func (d *deps) verifier(pusher verify.Pusher) *verify.Service {
	return verify.NewService(d.store, d.cfg.SecretKey, d.cfg.BasePublicURL, pusher, d.metrics, d.log)
}
