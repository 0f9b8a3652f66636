package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/team-of-2/novelize/notes"
	"github.com/team-of-2/novelize/notes/fileutils"
	"github.com/team-of-2/novelize/notes/panel"
	"github.com/team-of-2/novelize/notes/provider"
	"github.com/team-of-2/novelize/notes/render"
	"github.com/team-of-2/novelize/notes/store"
	"go.uber.org/zap"
)

const (
	outputTerminal = "terminal"
	outputMarkdown = "markdown"
	outputHTML     = "html"
	outputJSON     = "json"
	outputCSV      = "csv"
)

// renderOpts are the output flags shared by commands that print a ledger.
type renderOpts struct {
	output string
	style  string
	width  int
}

func (o *renderOpts) bind(cmd *cobra.Command, defOutput string) {
	cmd.Flags().StringVarP(&o.output, "output", "o", defOutput, "terminal, markdown, html, json or csv")
	cmd.Flags().StringVar(&o.style, "style", "", "glamour style for terminal output (dark, light, notty); empty detects")
	cmd.Flags().IntVar(&o.width, "width", 80, "wrap width for terminal output")
}

func writeNotes(w io.Writer, n notes.Notes, o renderOpts) error {
	switch o.output {
	case outputJSON:
		return notes.WriteJSON(w, n, true)
	case outputCSV:
		return notes.WriteCSV(w, n)
	}
	if len(n) == 0 {
		_, err := fmt.Fprintln(w, "No characters found.")
		return err
	}
	var out string
	switch o.output {
	case outputMarkdown:
		out = render.Markdown(n)
	case outputHTML:
		h, err := render.HTML(n)
		if err != nil {
			return err
		}
		out = string(h)
	case outputTerminal:
		s, err := render.Terminal(n, render.TerminalOptions{Width: o.width, Style: o.style})
		if err != nil {
			return err
		}
		out = s
	default:
		return fmt.Errorf("unknown --output %q", o.output)
	}
	_, err := io.WriteString(w, out)
	return err
}

func (a *app) readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := afero.ReadFile(a.fs, args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(b), nil
}

func (a *app) accumulator(inv provider.Invoker) *notes.Accumulator {
	return &notes.Accumulator{
		Client:            inv,
		WordBudget:        a.cfg.WordBudget,
		MaxParagraphChars: a.cfg.MaxChars,
		MaxTokens:         a.cfg.MaxTokens,
		Logger:            a.logger,
	}
}

// openSession resumes id from st, or starts a new session (under id when given).
func (a *app) openSession(ctx context.Context, st store.Store, id string, updater notes.Updater) (*notes.Session, error) {
	if id == "" {
		return notes.NewSession(updater, nil), nil
	}
	snap, err := st.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Info("starting new session", zap.String("session", id))
		return notes.RestoreSession(id, updater, nil, 0), nil
	}
	if err != nil {
		return nil, err
	}
	a.logger.Info("resuming session", zap.String("session", id), zap.Uint64("version", snap.Version), zap.Int("characters", len(snap.Notes)))
	return snap.Resume(updater), nil
}

type analyzeOpts struct {
	renderOpts
	session string
	save    bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var o analyzeOpts
	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Build character notes from a text, one paragraph at a time",
		Long: `Splits the input on blank lines and feeds each paragraph through the notes accumulator.
Paragraphs over --max-chars are skipped with a warning. With --session the ledger is resumed from
and saved back to the store.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, args, o)
		},
	}
	o.bind(cmd, outputTerminal)
	cmd.Flags().StringVar(&o.session, "session", "", "session id to resume and save")
	cmd.Flags().BoolVar(&o.save, "save", false, "save the session even without --session")
	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command, args []string, o analyzeOpts) error {
	ctx := cmd.Context()
	text, err := a.readInput(cmd, args)
	if err != nil {
		return err
	}
	paragraphs := notes.SplitParagraphs(text)
	if len(paragraphs) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), notes.NothingToSummarize)
		return err
	}

	inv, err := a.newInvoker(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	var st store.Store
	if o.session != "" || o.save {
		if st, err = a.newStore(ctx, a.cfg); err != nil {
			return err
		}
	}
	session, err := a.openSession(ctx, st, o.session, a.accumulator(inv))
	if err != nil {
		return err
	}

	var failed int
	for i, p := range paragraphs {
		_, report, err := session.Update(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var tooLarge *notes.InputTooLargeError
			if errors.As(err, &tooLarge) {
				fmt.Fprintln(cmd.ErrOrStderr(), render.Warning(fmt.Sprintf("paragraph %d: %s", i+1, tooLarge.Warning())))
			}
			a.logger.Warn("paragraph skipped", zap.Int("paragraph", i+1), zap.Error(err))
			failed++
			continue
		}
		a.logger.Info("paragraph processed",
			zap.Int("paragraph", i+1),
			zap.Int("of", len(paragraphs)),
			zap.Int("pairs", report.Pairs),
			zap.Bool("no_characters", report.NoCharactersFound),
			zap.Strings("summary_failures", report.SummaryFailures))
	}
	if failed > 0 {
		a.logger.Warn("some paragraphs were not processed", zap.Int("failed", failed), zap.Int("total", len(paragraphs)))
	}

	if st != nil {
		if err := st.Save(ctx, session.Snapshot(a.cfg.WordBudget)); err != nil {
			return err
		}
		a.logger.Info("session saved", zap.String("session", session.ID()), zap.Uint64("version", session.Version()))
	}
	return writeNotes(cmd.OutOrStdout(), session.Notes(), o.renderOpts)
}

func newSummarizeCmd(a *app) *cobra.Command {
	var o renderOpts
	cmd := &cobra.Command{
		Use:   "summarize [file|-]",
		Short: "Summarize a text once using --type, --format and --length",
		Long: `Runs the panel flow once on the whole input. --type characters builds character notes
from the text as a single paragraph; the other types ask the model for a generic summary.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.readInput(cmd, args)
			if err != nil {
				return err
			}
			inv, err := a.newInvoker(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			p := &consolePresenter{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), opts: o}
			c, err := panel.NewController(panel.ControllerConfig{
				Presenter: p,
				Session:   notes.NewSession(a.accumulator(inv), nil),
				Client:    inv,
				Options:   a.cfg.SummaryOptions(),
				MaxChars:  a.cfg.MaxChars,
				MaxTokens: a.cfg.MaxTokens,
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}
			if err := c.OnContentChange(cmd.Context(), strings.TrimSpace(text)); err != nil {
				return err
			}
			return p.err
		},
	}
	o.bind(cmd, outputTerminal)
	return cmd
}

// consolePresenter prints the final panel state; the loading placeholder is dropped.
type consolePresenter struct {
	out    io.Writer
	errOut io.Writer
	opts   renderOpts
	err    error
}

func (p *consolePresenter) ShowNotes(n notes.Notes) {
	if err := writeNotes(p.out, n, p.opts); err != nil && p.err == nil {
		p.err = err
	}
}

func (p *consolePresenter) ShowSummary(text string) {
	if text == panel.Loading {
		return
	}
	fmt.Fprintln(p.out, text)
}

func (p *consolePresenter) ShowWarning(msg string) {
	if msg != "" {
		fmt.Fprintln(p.errOut, render.Warning(msg))
	}
}

func newShowCmd(a *app) *cobra.Command {
	var o renderOpts
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a saved session's notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.newStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			snap, err := st.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeNotes(cmd.OutOrStdout(), snap.Notes, o)
		},
	}
	o.bind(cmd, outputTerminal)
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		o   renderOpts
		out string
	)
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write a saved session's notes to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.newStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			snap, err := st.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out == "" {
				return writeNotes(cmd.OutOrStdout(), snap.Notes, o)
			}
			var buf bytes.Buffer
			if err := writeNotes(&buf, snap.Notes, o); err != nil {
				return err
			}
			if err := fileutils.WriteFileAtomicSameDir(a.fs, out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("export: write %s: %w", out, err)
			}
			a.logger.Info("exported", zap.String("session", snap.ID), zap.String("path", out), zap.String("output", o.output))
			return nil
		},
	}
	o.bind(cmd, outputCSV)
	cmd.Flags().StringVar(&out, "out", "", "destination file; empty writes to stdout")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved session ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.newStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			ids, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.newStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.logger.Info("session deleted", zap.String("session", args[0]))
			return nil
		},
	}
}

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of a saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := json.MarshalIndent(provider.GenerateSchema[notes.Snapshot](), "", "  ")
			if err != nil {
				return fmt.Errorf("schema: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}
