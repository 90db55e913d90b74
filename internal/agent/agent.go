// Package agent binds fixed interviewer roles to the provider failover
// controller and implements the single-retry-with-failover call pattern.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/questlabs/interviewd/internal/logger"
	"github.com/questlabs/interviewd/internal/provider"
)

const (
	// CallFailurePrefix marks a non-recoverable single-call failure. The
	// caller receives it as text so the session keeps moving with a low
	// score instead of aborting.
	CallFailurePrefix = "ERROR_CALLING_AGENT:"
	// ExhaustedPrefix marks a call that failed on both providers.
	ExhaustedPrefix = "ERROR:"

	defaultPreviewLen = 200
)

// Providers is the slice of the failover controller an agent needs.
type Providers interface {
	ActiveHandle(ctx context.Context) (provider.Generator, error)
	SwitchToBackup(ctx context.Context, reason string) (provider.Generator, error)
}

// IsFailure reports whether the text is one of the sentinel failure strings
// produced by Ask.
func IsFailure(text string) bool {
	return strings.HasPrefix(text, CallFailurePrefix) || strings.HasPrefix(text, ExhaustedPrefix)
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeQuota
	outcomeOther
)

// Agent is one interviewer role: a name and system instructions bound to the
// shared provider failover controller.
type Agent struct {
	name      string
	system    string
	providers Providers
	logger    *zap.Logger

	// retryOnQuota disables the failover-and-retry path when false.
	retryOnQuota bool

	mu     sync.Mutex
	calls  int
	errors int
}

// Stats summarizes an agent's usage.
type Stats struct {
	Name   string `json:"name"`
	Calls  int    `json:"calls"`
	Errors int    `json:"errors"`
}

// New creates an agent for the given role.
func New(name, system string, providers Providers, log *zap.Logger) *Agent {
	return &Agent{
		name:         name,
		system:       system,
		providers:    providers,
		logger:       logger.WithFields(log, zap.String(logger.FieldAgent, name)),
		retryOnQuota: true,
	}
}

// Ask sends the prompt through the active provider and returns the response
// text. Failures never surface as errors: a quota-class failure triggers
// exactly one failover-and-retry, anything else (and an exhausted retry)
// degrades to a sentinel string the caller can carry forward.
func (a *Agent) Ask(ctx context.Context, prompt string) string {
	a.countCall()

	a.logger.Debug("agent request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, defaultPreviewLen)),
	)

	text, kind, err := a.attempt(ctx, prompt)
	if kind == outcomeSuccess {
		return text
	}

	if kind == outcomeOther || !a.retryOnQuota {
		a.countError()
		a.logger.Warn("agent call failed", zap.Error(err), zap.Bool("retryable", false))
		return fmt.Sprintf("%s %v", CallFailurePrefix, err)
	}

	// Quota-class failure: toggle to the backup and retry exactly once.
	// Unbounded retries against an exhausted quota are deliberately not
	// attempted.
	handle, switchErr := a.providers.SwitchToBackup(ctx, err.Error())
	if switchErr != nil {
		a.countError()
		a.logger.Error("failover unavailable", zap.Error(switchErr))
		return fmt.Sprintf("%s both providers failed. original: %v, retry: %v", ExhaustedPrefix, err, switchErr)
	}

	retryText, retryKind, retryErr := a.call(ctx, handle, prompt)
	if retryKind == outcomeSuccess {
		a.logger.Info("retry after failover succeeded", zap.String(logger.FieldProvider, string(handle.Name())))
		return retryText
	}

	a.countError()
	a.logger.Error("retry after failover failed", zap.Error(retryErr))
	return fmt.Sprintf("%s both providers failed. original: %v, retry: %v", ExhaustedPrefix, err, retryErr)
}

// attempt resolves the active handle and issues one call against it.
func (a *Agent) attempt(ctx context.Context, prompt string) (string, outcome, error) {
	handle, err := a.providers.ActiveHandle(ctx)
	if err != nil {
		return "", outcomeOther, err
	}
	return a.call(ctx, handle, prompt)
}

func (a *Agent) call(ctx context.Context, handle provider.Generator, prompt string) (string, outcome, error) {
	reply, err := handle.GenerateContent(ctx, a.withSystem(prompt))
	if err != nil {
		if provider.IsQuotaError(err) {
			return "", outcomeQuota, err
		}
		return "", outcomeOther, err
	}

	text := reply.Text()
	a.logger.Debug("agent response",
		zap.String(logger.FieldProvider, string(handle.Name())),
		zap.Int("response_length", utf8.RuneCountInString(text)),
		zap.String("response_preview", logger.TruncateForLog(text, defaultPreviewLen)),
	)

	return text, outcomeSuccess, nil
}

// withSystem prepends the role instructions to the task prompt. Both
// backends are driven through a plain prompt capability, so the system
// message travels in-band.
func (a *Agent) withSystem(prompt string) string {
	system := strings.TrimSpace(a.system)
	if system == "" {
		return prompt
	}
	return system + "\n\n" + prompt
}

// Name returns the agent's role name.
func (a *Agent) Name() string {
	return a.name
}

// Stats returns a snapshot of the agent's usage counters.
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{Name: a.name, Calls: a.calls, Errors: a.errors}
}

func (a *Agent) countCall() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
}

func (a *Agent) countError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors++
}
