package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrNotConfigured indicates that the credential required by a backend that
// is about to become active is missing. This is fatal for the startup or
// failover attempt that triggered it.
var ErrNotConfigured = errors.New("provider is not configured")

// quotaKeywords classify a provider-reported error as a quota/rate-limit
// failure. The match is a case-insensitive substring test because providers
// report these as free text, not structured codes.
var quotaKeywords = []string{
	"quota",
	"rate limit",
	"too many requests",
	"429",
	"resource exhausted",
	"limit exceeded",
	"insufficient_quota",
}

// IsQuotaMessage reports whether the error text matches the quota keyword set.
func IsQuotaMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, keyword := range quotaKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// IsQuotaError reports whether the error is a quota/rate-limit failure.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	return IsQuotaMessage(err.Error())
}

// Config carries the credentials and model selection for both backends.
type Config struct {
	Primary           ID
	GeminiAPIKey      string
	GeminiModel       string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string
}

// Validate checks that the primary identifier is known and that at least one
// backend has a usable credential.
func (c Config) Validate() error {
	if !c.Primary.Valid() {
		return fmt.Errorf("unknown primary provider: %s", c.Primary)
	}
	if strings.TrimSpace(c.GeminiAPIKey) == "" && strings.TrimSpace(c.OpenRouterAPIKey) == "" {
		return fmt.Errorf("%w: at least one provider api key must be set", ErrNotConfigured)
	}
	return nil
}

func (c Config) credential(id ID) string {
	if id == Gemini {
		return strings.TrimSpace(c.GeminiAPIKey)
	}
	return strings.TrimSpace(c.OpenRouterAPIKey)
}

// Switch records one failover event.
type Switch struct {
	From     ID     `json:"from" mapstructure:"from"`
	To       ID     `json:"to" mapstructure:"to"`
	Reason   string `json:"reason" mapstructure:"reason"`
	Sequence int    `json:"sequence" mapstructure:"sequence"`
}

// Status is a point-in-time copy of the failover state, safe to hand to
// health and status endpoints.
type Status struct {
	Active        ID       `json:"current_provider" mapstructure:"current_provider"`
	FailoverCount int      `json:"failover_count" mapstructure:"failover_count"`
	HasGemini     bool     `json:"has_gemini" mapstructure:"has_gemini"`
	HasOpenRouter bool     `json:"has_openrouter" mapstructure:"has_openrouter"`
	History       []Switch `json:"history" mapstructure:"history"`
}

// Factory constructs a handle for the given backend. Construction fails with
// an error wrapping ErrNotConfigured when the backend's credential is absent.
type Factory func(ctx context.Context, id ID) (Generator, error)

// Failover owns the identity of the active backend and performs the binary
// Primary <-> Backup toggle on quota-class failures. It is the one shared
// mutable resource across sessions; all state changes happen under a single
// mutex so concurrent failover attempts cannot corrupt the counters or hand
// out a half-constructed handle.
type Failover struct {
	cfg     Config
	factory Factory
	logger  *zap.Logger

	mu            sync.Mutex
	active        ID
	handles       map[ID]Generator
	failoverCount int
	history       []Switch
}

// New creates a failover controller using the real backend factory.
func New(cfg Config, logger *zap.Logger) *Failover {
	return NewWithFactory(cfg, nil, logger)
}

// NewWithFactory creates a failover controller with a custom handle factory.
func NewWithFactory(cfg Config, factory Factory, logger *zap.Logger) *Failover {
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &Failover{
		cfg:     cfg,
		factory: factory,
		logger:  logger,
		active:  cfg.Primary,
		handles: make(map[ID]Generator),
	}

	if f.factory == nil {
		f.factory = f.buildHandle
	}

	if !f.active.Valid() {
		f.active = Gemini
	}

	return f
}

func (f *Failover) buildHandle(ctx context.Context, id ID) (Generator, error) {
	switch id {
	case Gemini:
		if f.cfg.credential(Gemini) == "" {
			return nil, fmt.Errorf("%w: gemini api key is missing", ErrNotConfigured)
		}
		return newGeminiGenerator(ctx, f.cfg.credential(Gemini), f.cfg.GeminiModel)
	case OpenRouter:
		if f.cfg.credential(OpenRouter) == "" {
			return nil, fmt.Errorf("%w: openrouter api key is missing", ErrNotConfigured)
		}
		return newOpenRouterGenerator(f.cfg.credential(OpenRouter), f.cfg.OpenRouterModel, f.cfg.OpenRouterBaseURL)
	default:
		return nil, fmt.Errorf("unknown provider: %s", id)
	}
}

// Active returns the identifier of the currently active backend.
func (f *Failover) Active() ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// ActiveHandle returns a lazily constructed handle bound to the active
// backend. A missing credential surfaces as ErrNotConfigured and must not be
// swallowed by callers performing startup validation.
func (f *Failover) ActiveHandle(ctx context.Context) (Generator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handleLocked(ctx, f.active)
}

func (f *Failover) handleLocked(ctx context.Context, id ID) (Generator, error) {
	if handle, ok := f.handles[id]; ok {
		return handle, nil
	}

	handle, err := f.factory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("create %s handle: %w", id, err)
	}

	f.handles[id] = handle
	return handle, nil
}

// SwitchToBackup toggles the active backend to its single alternate and
// returns a handle for it. The target handle is fully constructed before any
// state is mutated, so the loser of a concurrent failover race still
// observes a valid backup handle. When the backup's credential is absent the
// switch fails with ErrNotConfigured and no state changes.
func (f *Failover) SwitchToBackup(ctx context.Context, reason string) (Generator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	from := f.active
	to := from.Backup()

	handle, err := f.handleLocked(ctx, to)
	if err != nil {
		return nil, err
	}

	f.active = to
	f.failoverCount++
	f.history = append(f.history, Switch{
		From:     from,
		To:       to,
		Reason:   reason,
		Sequence: f.failoverCount,
	})

	f.logger.Warn("provider failover",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reason", reason),
		zap.Int("failover_count", f.failoverCount),
	)

	return handle, nil
}

// Status returns a copy of the failover state.
func (f *Failover) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	history := make([]Switch, len(f.history))
	copy(history, f.history)

	return Status{
		Active:        f.active,
		FailoverCount: f.failoverCount,
		HasGemini:     f.cfg.credential(Gemini) != "",
		HasOpenRouter: f.cfg.credential(OpenRouter) != "",
		History:       history,
	}
}
