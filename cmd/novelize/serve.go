package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/team-of-2/novelize/notes/panel"
	"github.com/team-of-2/novelize/notes/store"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the notes panel over HTTP",
		Long: `Serves a small panel: POST text to /content, change selectors via /config, and read the
ledger from /, /notes.json or /notes.csv. With --session the ledger is resumed on start and saved on
shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ln, err := net.Listen("tcp", a.cfg.Addr)
			if err != nil {
				return err
			}
			return a.serve(cmd.Context(), ln, sessionID)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to resume on start and save on shutdown")
	return cmd
}

// serve runs the panel on ln until ctx is done.
func (a *app) serve(ctx context.Context, ln net.Listener, sessionID string) error {
	inv, err := a.newInvoker(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	var st store.Store
	if sessionID != "" {
		if st, err = a.newStore(ctx, a.cfg); err != nil {
			return err
		}
	}
	session, err := a.openSession(ctx, st, sessionID, a.accumulator(inv))
	if err != nil {
		return err
	}

	presenter := &panel.ViewPresenter{}
	if n := session.Notes(); len(n) > 0 {
		presenter.ShowNotes(n)
	}
	controller, err := panel.NewController(panel.ControllerConfig{
		Presenter: presenter,
		Session:   session,
		Client:    inv,
		Options:   a.cfg.SummaryOptions(),
		MaxChars:  a.cfg.MaxChars,
		MaxTokens: a.cfg.MaxTokens,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           panel.NewHandler(controller, presenter, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("panel listening", zap.String("addr", ln.Addr().String()), zap.String("session", session.ID()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("panel shutdown", zap.Error(err))
		}
		<-errCh
	}

	return a.saveSession(st, session)
}
