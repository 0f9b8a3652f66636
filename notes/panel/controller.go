// Package panel drives a side-panel style view: it watches content and selector changes, runs the
// character-notes accumulator or a generic summary, and pushes results to a Presenter.
package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/team-of-2/novelize/notes"
	"github.com/team-of-2/novelize/notes/provider"
	"go.uber.org/zap"
)

// Loading is shown while a model call is in flight.
const Loading = "Loading..."

var errInvalidOptions = errors.New("invalid summary options")

// Presenter receives everything the panel displays.
type Presenter interface {
	ShowNotes(n notes.Notes)
	ShowSummary(text string)
	// ShowWarning displays msg; an empty msg hides the warning.
	ShowWarning(msg string)
}

// Controller caches the last content and selectors and re-runs summarization when either changes.
type Controller struct {
	presenter Presenter
	session   *notes.Session
	client    provider.Invoker
	maxChars  int
	maxTokens int
	logger    *zap.Logger

	mu      sync.Mutex
	content string
	cached  bool
	opts    notes.SummaryOptions
}

// ControllerConfig wires a Controller.
type ControllerConfig struct {
	Presenter Presenter
	Session   *notes.Session
	// Client serves the generic summary modes. It is usually the same client the session's accumulator uses.
	Client    provider.Invoker
	Options   notes.SummaryOptions
	MaxChars  int
	MaxTokens int
	Logger    *zap.Logger
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Presenter == nil {
		return nil, errors.New("NewController: presenter is nil")
	}
	if cfg.Session == nil {
		return nil, errors.New("NewController: session is nil")
	}
	if cfg.Options == (notes.SummaryOptions{}) {
		cfg.Options = notes.DefaultSummaryOptions()
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, fmt.Errorf("NewController: %w", err)
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = notes.DefaultMaxParagraphChars
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Controller{
		presenter: cfg.Presenter,
		session:   cfg.Session,
		client:    cfg.Client,
		maxChars:  cfg.MaxChars,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
		opts:      cfg.Options,
	}, nil
}

// Options returns the current selectors.
func (c *Controller) Options() notes.SummaryOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// OnContentChange summarizes text unless it matches the cached content.
func (c *Controller) OnContentChange(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.cached && text == c.content {
		c.mu.Unlock()
		return nil
	}
	c.content, c.cached = text, true
	opts := c.opts
	c.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		c.presenter.ShowWarning("")
		c.presenter.ShowSummary(notes.NothingToSummarize)
		return nil
	}

	if err := notes.ValidateParagraph(text, c.maxChars); err != nil {
		var tooLarge *notes.InputTooLargeError
		if errors.As(err, &tooLarge) {
			c.presenter.ShowWarning(tooLarge.Warning())
		}
		c.logger.Warn("content rejected",
			zap.Int("chars", len([]rune(text))),
			zap.Int("max_chars", c.maxChars),
			zap.String("content", provider.Excerpt(text)))
		return fmt.Errorf("OnContentChange: %w", err)
	}
	c.presenter.ShowWarning("")
	c.presenter.ShowSummary(Loading)

	if opts.Type == notes.TypeCharacters {
		n, report, err := c.session.Update(ctx, text)
		if err != nil {
			c.presenter.ShowSummary("Error: " + err.Error())
			return fmt.Errorf("OnContentChange: %w", err)
		}
		c.logger.Debug("panel notes updated",
			zap.Int("characters", len(n)),
			zap.Bool("no_characters", report.NoCharactersFound))
		c.presenter.ShowNotes(n)
		return nil
	}

	summary, err := c.generateSummary(ctx, text, opts)
	if err != nil {
		c.presenter.ShowSummary("Error: " + err.Error())
		return fmt.Errorf("OnContentChange: %w", err)
	}
	c.presenter.ShowSummary(summary)
	return nil
}

// Ledger returns the session's notes and their version. The notes outlive any summary or error the
// presenter is showing.
func (c *Controller) Ledger() (notes.Notes, uint64) {
	return c.session.Current()
}

// ReplaceNotes stores hand-edited notes when the ledger is still at version.
func (c *Controller) ReplaceNotes(version uint64, n notes.Notes) error {
	if n == nil {
		n = notes.Notes{}
	}
	if !c.session.ApplyIfCurrent(version, n) {
		return fmt.Errorf("ReplaceNotes: %w", notes.ErrStaleVersion)
	}
	c.logger.Info("panel notes replaced", zap.Uint64("base_version", version), zap.Int("characters", len(n)))
	c.presenter.ShowNotes(n)
	return nil
}

// OnConfigChange swaps the selectors, clears the cached content and re-runs with the same text.
func (c *Controller) OnConfigChange(ctx context.Context, opts notes.SummaryOptions) error {
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("OnConfigChange: %w: %w", errInvalidOptions, err)
	}
	c.mu.Lock()
	old := c.content
	c.content, c.cached = "", false
	c.opts = opts
	c.mu.Unlock()

	if old == "" {
		return nil
	}
	return c.OnContentChange(ctx, old)
}

func (c *Controller) generateSummary(ctx context.Context, text string, opts notes.SummaryOptions) (string, error) {
	if c.client == nil {
		return "", errors.New("generic summary: no model client configured")
	}
	out, err := c.client.Invoke(ctx, provider.NewUserRequest(notes.GenericSummaryPrompt(text, opts), c.maxTokens))
	if err != nil {
		c.logger.Error("generic summary failed", zap.String("type", opts.Type), zap.Error(err))
		return "", err
	}
	return strings.TrimSpace(out), nil
}
