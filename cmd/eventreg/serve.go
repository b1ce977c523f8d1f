package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"eventreg/internal/server"
	"eventreg/internal/sheetsync"
	"eventreg/internal/verify"
)

func serveCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the verification endpoint and the operator bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), d)
		},
	}
}

func serve(parent context.Context, d *deps) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The bot is created first so the syncer can notify through it.
	botApp := d.bot(nil)
	var notifier sheetsync.Notifier
	if botApp != nil {
		notifier = botApp
	}

	var pusher verify.Pusher
	syncer, err := d.syncer(ctx, notifier)
	if err != nil {
		d.log.Warn("Spreadsheet access disabled", zap.Error(err))
	} else if d.cfg.PushOnVerify {
		pusher = syncer
	}
	verifier := d.verifier(pusher)

	httpSrv := server.New(d.cfg, verifier, d.registry, d.log)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.log.Info("HTTP listening", zap.String("addr", d.cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		d.log.Info("Shutting down")
		ctxTimeout, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		return httpSrv.Shutdown(ctxTimeout)
	})

	if botApp != nil {
		if syncer != nil {
			botApp.SetSyncer(syncer)
		}
		botApp.SetVerifier(verifier)
		g.Go(func() error {
			if err := botApp.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				d.log.Error("Bot stopped", zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	d.log.Info("Stopped")
	return nil
}
