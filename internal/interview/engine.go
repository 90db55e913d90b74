package interview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/questlabs/interviewd/internal/agent"
	"github.com/questlabs/interviewd/internal/evaluation"
	"github.com/questlabs/interviewd/internal/logger"
	"github.com/questlabs/interviewd/internal/provider"
)

// ErrSessionNotFound indicates an unknown session id. The engine never
// synthesizes state for ids it does not know.
var ErrSessionNotFound = errors.New("session not found")

const (
	defaultResumeQuestions   = 3
	defaultBehaviorQuestions = 5

	easySecondQuestion = "Explain how you would implement a simple cache."
	hardSecondQuestion = "Design a distributed caching system with consistency guarantees."
)

// Config tunes the generated question set.
type Config struct {
	ResumeQuestions   int
	BehaviorQuestions int
}

// Engine drives candidates through the interview state machine. All
// generation goes through role agents sharing one provider failover
// controller.
type Engine struct {
	cfg       Config
	sessions  *Store
	providers *provider.Failover
	logger    *zap.Logger

	coding    *agent.Coding
	resume    *agent.Resume
	behavior  *agent.Behavior
	evaluator *agent.Evaluator
}

// New creates the orchestration engine and its role agents.
func New(cfg Config, providers *provider.Failover, sessions *Store, log *zap.Logger) *Engine {
	if cfg.ResumeQuestions <= 0 {
		cfg.ResumeQuestions = defaultResumeQuestions
	}
	if cfg.BehaviorQuestions <= 0 {
		cfg.BehaviorQuestions = defaultBehaviorQuestions
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		cfg:       cfg,
		sessions:  sessions,
		providers: providers,
		logger:    log,
		coding:    agent.NewCoding(providers, log),
		resume:    agent.NewResume(providers, log),
		behavior:  agent.NewBehavior(providers, log),
		evaluator: agent.NewEvaluator(providers, log),
	}
}

// StartResult is returned from CreateSession.
type StartResult struct {
	SessionID     string `json:"session_id"`
	FirstQuestion string `json:"first_question"`
}

// SubmitResult is returned from SubmitAnswer. NextQuestion is empty when the
// session is done.
type SubmitResult struct {
	Evaluation   evaluation.Record `json:"evaluation"`
	NextQuestion string            `json:"next_question,omitempty"`
	Done         bool              `json:"done"`
}

// ReportResult is returned from GenerateReport.
type ReportResult struct {
	Report  evaluation.Report `json:"report"`
	Answers []AnswerRecord    `json:"answers"`
}

// CreateSession generates the question set for a new candidate and returns
// the session id with the first coding question. Generation failures degrade
// to empty question lists; the state machine skips empty phases.
func (e *Engine) CreateSession(ctx context.Context, resumeText, jdText string, mode Mode) (*StartResult, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown interview mode: %s", mode)
	}

	id := uuid.NewString()
	log := e.logger.With(zap.String(logger.FieldSession, id))
	log.Info("creating session", zap.String("mode", string(mode)))

	problem := e.coding.GenerateProblem(ctx, resumeText, jdText, "medium")
	followups := e.coding.GenerateFollowups(ctx, problem)
	resumeQs := e.resume.GenerateQuestions(ctx, resumeText, jdText, e.cfg.ResumeQuestions)
	behaviorQs := e.behavior.GenerateQuestions(ctx, e.cfg.BehaviorQuestions)

	sess := &Session{
		ID:   id,
		Mode: mode,
		Questions: QuestionSet{
			Coding: CodingQuestions{
				Primary:    problem,
				Followups:  followups,
				EasyBranch: easySecondQuestion,
				HardBranch: hardSecondQuestion,
			},
			Resume:   resumeQs,
			Behavior: behaviorQs,
		},
		Progress: Progress{
			Round: RoundCoding,
		},
		CreatedAt: time.Now(),
	}

	e.sessions.Add(sess)

	log.Info("session created",
		zap.Int("resume_questions", len(resumeQs)),
		zap.Int("behavior_questions", len(behaviorQs)),
	)

	return &StartResult{SessionID: id, FirstQuestion: problem}, nil
}

// SubmitAnswer evaluates one answer and advances the session. Unknown ids
// fail with ErrSessionNotFound. Once a session is done, further submissions
// are terminal no-ops: nothing is evaluated or recorded and the last
// evaluation is echoed back with done=true.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID, question, answer string) (*SubmitResult, error) {
	sess, ok := e.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Progress.Round == RoundDone {
		result := &SubmitResult{Done: true}
		if n := len(sess.Progress.Answers); n > 0 {
			result.Evaluation = sess.Progress.Answers[n-1].Evaluation
		}
		return result, nil
	}

	record := e.evaluator.Evaluate(ctx, question, answer, sess.Progress.Round.String(), string(sess.Mode))

	sess.Progress.Answers = append(sess.Progress.Answers, AnswerRecord{
		Question:   question,
		Answer:     answer,
		Evaluation: record,
	})

	next, done := sess.advance(record.Score)

	e.logger.Info("answer submitted",
		zap.String(logger.FieldSession, sessionID),
		zap.String("round", sess.Progress.Round.String()),
		zap.Int("score", record.Score),
		zap.Int("answers", len(sess.Progress.Answers)),
		zap.Bool("done", done),
	)

	return &SubmitResult{Evaluation: record, NextQuestion: next, Done: done}, nil
}

// MatchScore assesses resume-vs-job-description fit without creating a
// session. The result always carries a usable percentage: extraction
// degrades to zero with the raw model text preserved.
func (e *Engine) MatchScore(ctx context.Context, resumeText, jdText string) evaluation.Match {
	match := e.evaluator.MatchScore(ctx, resumeText, jdText)

	e.logger.Info("match score calculated",
		zap.Int("match_percent", match.MatchPercent),
		zap.Bool("degraded", match.Raw != ""),
	)

	return match
}

// ProviderStatus exposes the failover state for health and status endpoints.
func (e *Engine) ProviderStatus() provider.Status {
	return e.providers.Status()
}

// AgentStats reports per-role usage counters.
func (e *Engine) AgentStats() []agent.Stats {
	return []agent.Stats{
		e.coding.Stats(),
		e.resume.Stats(),
		e.behavior.Stats(),
		e.evaluator.Stats(),
	}
}
