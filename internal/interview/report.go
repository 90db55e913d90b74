package interview

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/questlabs/interviewd/internal/evaluation"
	"github.com/questlabs/interviewd/internal/logger"
)

// GenerateReport folds the full answer history into one evaluator call and
// extracts a structured summary. Unparseable model output degrades to a
// report carrying the raw text; the report itself never fails for that.
func (e *Engine) GenerateReport(ctx context.Context, sessionID string) (*ReportResult, error) {
	sess, ok := e.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	sess.mu.Lock()
	answers := make([]AnswerRecord, len(sess.Progress.Answers))
	copy(answers, sess.Progress.Answers)
	sess.mu.Unlock()

	raw := e.evaluator.Ask(ctx, buildReportPrompt(answers))
	report := evaluation.ParseReport(raw)

	e.logger.Info("report generated",
		zap.String(logger.FieldSession, sessionID),
		zap.Int("answers", len(answers)),
		zap.Bool("parsed", report.Raw == ""),
	)

	return &ReportResult{Report: report, Answers: answers}, nil
}

func buildReportPrompt(answers []AnswerRecord) string {
	var b strings.Builder
	b.WriteString(
		"Given the following Q&A pairs with evaluations, summarize strengths, weaknesses, " +
			"and recommendations. Return JSON with keys 'strengths', 'weaknesses', " +
			"'recommendations'.\n\n",
	)

	for _, a := range answers {
		fmt.Fprintf(&b, "Q: %s\nA: %s\nEval: score=%d/10 feedback=%s\n\n",
			a.Question, a.Answer, a.Evaluation.Score, a.Evaluation.Feedback)
	}

	return b.String()
}
