package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/team-of-2/novelize/notes"
	"github.com/team-of-2/novelize/notes/panel"
	"github.com/team-of-2/novelize/notes/store"
	"go.uber.org/zap"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		o         renderOpts
		sessionID string
	)
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-run the panel whenever a file changes",
		Long: `Treats the file's contents as the panel content: every write re-runs the selected summary
type, and unchanged content is ignored. Stop with Ctrl-C; with --session the ledger is saved on exit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			defer w.Close()
			// The directory is watched so editors that replace the file by rename keep being seen.
			if err := w.Add(filepath.Dir(args[0])); err != nil {
				return fmt.Errorf("watch %s: %w", args[0], err)
			}
			p := &consolePresenter{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), opts: o}
			return a.watch(cmd.Context(), w.Events, w.Errors, args[0], sessionID, p)
		},
	}
	o.bind(cmd, outputTerminal)
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to resume on start and save on exit")
	return cmd
}

// watch feeds path through a panel controller on start and after every matching event, until ctx is done.
func (a *app) watch(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, path, sessionID string, p panel.Presenter) error {
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
	c, err := panel.NewController(panel.ControllerConfig{
		Presenter: p,
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

	target := filepath.Clean(path)
	trigger := func() {
		b, err := afero.ReadFile(a.fs, target)
		if err != nil {
			a.logger.Warn("read watched file", zap.String("path", target), zap.Error(err))
			return
		}
		if err := c.OnContentChange(ctx, strings.TrimSpace(string(b))); err != nil && !errors.Is(err, notes.ErrInputTooLarge) {
			a.logger.Error("panel update failed", zap.String("path", target), zap.Error(err))
		}
	}
	trigger()

	for {
		select {
		case <-ctx.Done():
			return a.saveSession(st, session)
		case ev, ok := <-events:
			if !ok {
				return a.saveSession(st, session)
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			a.logger.Debug("watched file changed", zap.String("path", target), zap.String("op", ev.Op.String()))
			trigger()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			a.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (a *app) saveSession(st store.Store, session *notes.Session) error {
	if st == nil {
		return nil
	}
	if err := st.Save(context.Background(), session.Snapshot(a.cfg.WordBudget)); err != nil {
		return err
	}
	a.logger.Info("session saved", zap.String("session", session.ID()), zap.Uint64("version", session.Version()))
	return nil
}
