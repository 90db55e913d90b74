package interview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/questlabs/interviewd/internal/provider"
)

// scriptedGenerator pops queued replies in order and falls back to a default
// once the script runs out.
type scriptedGenerator struct {
	mu        sync.Mutex
	id        provider.ID
	script    []scriptItem
	fallback  string
	lastPromp string
}

type scriptItem struct {
	text string
	err  error
}

func (s *scriptedGenerator) GenerateContent(_ context.Context, prompt string) (provider.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPromp = prompt

	if len(s.script) == 0 {
		return provider.TextReply(s.fallback), nil
	}

	next := s.script[0]
	s.script = s.script[1:]
	if next.err != nil {
		return provider.Reply{}, next.err
	}
	return provider.TextReply(next.text), nil
}

func (s *scriptedGenerator) Name() provider.ID { return s.id }
func (s *scriptedGenerator) Model() string     { return "stub-model" }

func (s *scriptedGenerator) enqueue(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, scriptItem{text: text})
}

func newTestEngine(t *testing.T, gen *scriptedGenerator) *Engine {
	t.Helper()

	cfg := provider.Config{Primary: provider.Gemini, GeminiAPIKey: "key"}
	failover := provider.NewWithFactory(cfg, func(_ context.Context, id provider.ID) (provider.Generator, error) {
		if id != provider.Gemini {
			return nil, provider.ErrNotConfigured
		}
		return gen, nil
	}, zap.NewNop())

	store := NewStore(16, time.Minute, zap.NewNop())
	return New(Config{}, failover, store, zap.NewNop())
}

// startSession scripts the four creation calls and returns the session id.
func startSession(t *testing.T, e *Engine, gen *scriptedGenerator, resumeQs, behaviorQs string) string {
	t.Helper()

	gen.enqueue("Implement an LRU cache.") // coding problem
	gen.enqueue("- brute force?\n- optimal complexity?")
	gen.enqueue(resumeQs)
	gen.enqueue(behaviorQs)

	result, err := e.CreateSession(context.Background(), "resume text", "jd text", ModeExperience)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FirstQuestion != "Implement an LRU cache." {
		t.Fatalf("unexpected first question: %q", result.FirstQuestion)
	}
	return result.SessionID
}

func evalResponse(score int) string {
	return `{"score": ` + itoa(score) + `, "feedback": "ok", "recommendations": []}`
}

func itoa(n int) string {
	if n < 0 {
		return "-" + itoa(-n)
	}
	if n < 10 {
		return string(rune('0' + n))
	}
	return itoa(n/10) + itoa(n%10)
}

func TestCreateSessionRejectsUnknownMode(t *testing.T) {
	gen := &scriptedGenerator{id: provider.Gemini, fallback: "x"}
	e := newTestEngine(t, gen)

	if _, err := e.CreateSession(context.Background(), "r", "j", Mode("casual")); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestSubmitAnswerUnknownSession(t *testing.T) {
	gen := &scriptedGenerator{id: provider.Gemini, fallback: "x"}
	e := newTestEngine(t, gen)

	_, err := e.SubmitAnswer(context.Background(), "no-such-id", "q", "a")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	if _, err := e.GenerateReport(context.Background(), "no-such-id"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for report, got %v", err)
	}
}

func TestCodingBranchBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		score  int
		expect string
	}{
		{name: "score seven goes hard", score: 7, expect: hardSecondQuestion},
		{name: "score six goes easy", score: 6, expect: easySecondQuestion},
		{name: "score ten goes hard", score: 10, expect: hardSecondQuestion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := &scriptedGenerator{id: provider.Gemini, fallback: evalResponse(5)}
			e := newTestEngine(t, gen)
			id := startSession(t, e, gen, "1. resume q1", "1. behavior q1")

			gen.enqueue(evalResponse(tt.score))
			result, err := e.SubmitAnswer(context.Background(), id, "coding q", "my answer")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if result.NextQuestion != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, result.NextQuestion)
			}
			if result.Done {
				t.Fatalf("session must not be done after the first answer")
			}
		})
	}
}

func TestUnparseableEvaluationRoutesEasy(t *testing.T) {
	gen := &scriptedGenerator{id: provider.Gemini, fallback: evalResponse(5)}
	e := newTestEngine(t, gen)
	id := startSession(t, e, gen, "1. resume q1", "1. behavior q1")

	gen.enqueue("I cannot really tell.")
	result, err := e.SubmitAnswer(context.Background(), id, "coding q", "my answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.NextQuestion != easySecondQuestion {
		t.Fatalf("uncertain evaluation must route to the easy branch, got %q", result.NextQuestion)
	}
	if result.Evaluation.Score != 0 {
		t.Fatalf("expected degraded score 0, got %d", result.Evaluation.Score)
	}
}

func TestFullSessionWalkRoundsAreMonotone(t *testing.T) {
	gen := &scriptedGenerator{id: provider.Gemini, fallback: evalResponse(8)}
	e := newTestEngine(t, gen)
	id := startSession(t, e, gen, "1. r1\n2. r2", "1. b1\n2. b2")

	sess, ok := e.sessions.Get(id)
	if !ok {
		t.Fatalf("session not stored")
	}

	expected := []struct {
		next  string
		round Round
		done  bool
	}{
		{next: hardSecondQuestion, round: RoundCoding, done: false},
		{next: "r1", round: RoundResume, done: false},
		{next: "r2", round: RoundResume, done: false},
		{next: "b1", round: RoundBehavior, done: false},
		{next: "b2", round: RoundBehavior, done: false},
		{next: "", round: RoundDone, done: true},
	}

	lastRound := RoundCoding
	for i, step := range expected {
		result, err := e.SubmitAnswer(context.Background(), id, "q", "a")
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if result.NextQuestion != step.next {
			t.Fatalf("step %d: expected next %q, got %q", i, step.next, result.NextQuestion)
		}
		if result.Done != step.done {
			t.Fatalf("step %d: expected done=%v, got %v", i, step.done, result.Done)
		}
		if sess.Progress.Round != step.round {
			t.Fatalf("step %d: expected round %s, got %s", i, step.round, sess.Progress.Round)
		}
		if sess.Progress.Round < lastRound {
			t.Fatalf("step %d: round regressed from %s to %s", i, lastRound, sess.Progress.Round)
		}
		lastRound = sess.Progress.Round
	}

	if len(sess.Progress.Answers) != len(expected) {
		t.Fatalf("expected %d answers recorded, got %d", len(expected), len(sess.Progress.Answers))
	}
}

func TestEmptyResumeSkipsToBehavior(t *testing.T) {
	gen := &scriptedGenerator{id: provider.Gemini, fallback: evalResponse(8)}
	e := newTestEngine(t, gen)
	// An agent sentinel yields no resume questions at all.
	id := startSession(t, e, gen, "ERROR_CALLING_AGENT: provider down", "1. b1")

	sess, _ := e.sessions.Get(id)

	if _, err := e.SubmitAnswer(context.Background(), id, "q1", "a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := e.SubmitAnswer(context.Background(), id, "q2", "a2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.NextQuestion != "b1" {
		t.Fatalf("expected behavior question, got %q", result.NextQuestion)
	}
	if sess.Progress.Round != RoundBehavior {
		t.Fatalf("expected round to skip straight to behavior, got %s", sess.Progress.Round)
	}
}

func TestEmptyResumeAndBehaviorFinishImmediately(t *testing.T) {
	gen := &scriptedGenerator{id: provider.Gemini, fallback: evalResponse(8)}
	e := newTestEngine(t, gen)
	id := startSession(t, e, gen, "", "")

	sess, _ := e.sessions.Get(id)

	if _, err := e.SubmitAnswer(context.Background(), id, "q1", "a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := e.SubmitAnswer(context.Background(), id, "q2", "a2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Done {
		t.Fatalf("expected session to finish with no resume or behavior questions")
	}
	if sess.Progress.Round != RoundDone {
		t.Fatalf("expected round done, got %s", sess.Progress.Round)
	}
}

func TestDoneSessionIsTerminal(t *testing.T) {
	gen := &scriptedGenerator{id: provider.Gemini, fallback: evalResponse(8)}
	e := newTestEngine(t, gen)
	id := startSession(t, e, gen, "", "")

	sess, _ := e.sessions.Get(id)

	for i := 0; i < 2; i++ {
		if _, err := e.SubmitAnswer(context.Background(), id, "q", "a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	recorded := len(sess.Progress.Answers)
	lastEval := sess.Progress.Answers[recorded-1].Evaluation

	// Repeated submissions after Done must not mutate progress.
	for i := 0; i < 3; i++ {
		result, err := e.SubmitAnswer(context.Background(), id, "late question", "late answer")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Done {
			t.Fatalf("terminal submission must report done=true")
		}
		if result.NextQuestion != "" {
			t.Fatalf("terminal submission must not return a question, got %q", result.NextQuestion)
		}
		if result.Evaluation.Score != lastEval.Score || result.Evaluation.Feedback != lastEval.Feedback {
			t.Fatalf("terminal submission must echo the last evaluation")
		}
	}

	if len(sess.Progress.Answers) != recorded {
		t.Fatalf("terminal submissions must not append answers: had %d, now %d", recorded, len(sess.Progress.Answers))
	}
	if sess.Progress.Round != RoundDone {
		t.Fatalf("round must stay done, got %s", sess.Progress.Round)
	}
}

func TestGenerateReport(t *testing.T) {
	gen := &scriptedGenerator{id: provider.Gemini, fallback: evalResponse(8)}
	e := newTestEngine(t, gen)
	id := startSession(t, e, gen, "", "")

	if _, err := e.SubmitAnswer(context.Background(), id, "q1", "a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.SubmitAnswer(context.Background(), id, "q2", "a2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gen.enqueue(`{"strengths": ["Solid basics"], "weaknesses": ["Edge cases"], "recommendations": ["More practice"]}`)
	result, err := e.GenerateReport(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Report.Strengths) != 1 || result.Report.Strengths[0] != "Solid basics" {
		t.Fatalf("unexpected strengths: %v", result.Report.Strengths)
	}
	if len(result.Answers) != 2 {
		t.Fatalf("expected 2 answers in report, got %d", len(result.Answers))
	}

	gen.mu.Lock()
	prompt := gen.lastPromp
	gen.mu.Unlock()
	if !strings.Contains(prompt, "Q: q1") || !strings.Contains(prompt, "Q: q2") {
		t.Fatalf("report prompt must embed every answer, got: %s", prompt)
	}
}

func TestGenerateReportFallsBackToRaw(t *testing.T) {
	gen := &scriptedGenerator{id: provider.Gemini, fallback: evalResponse(8)}
	e := newTestEngine(t, gen)
	id := startSession(t, e, gen, "", "")

	if _, err := e.SubmitAnswer(context.Background(), id, "q1", "a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.SubmitAnswer(context.Background(), id, "q2", "a2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gen.enqueue("The candidate was fine.")
	result, err := e.GenerateReport(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Report.Raw != "The candidate was fine." {
		t.Fatalf("expected raw fallback report, got %+v", result.Report)
	}
}
