package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/questlabs/interviewd/internal/evaluation"
)

const (
	codingSystem = "You are a coding interviewer. You ask data structures and algorithms " +
		"problems, and system design problems for candidates with three or more years of " +
		"experience. When asked to generate a problem, produce a clear statement, " +
		"constraints, sample input/output, and complexity expectations. Keep wording " +
		"precise and unambiguous."

	resumeSystem = "You are a resume interviewer focusing on the candidate's resume and " +
		"the job description. Generate targeted questions about past projects, tools, " +
		"technologies, and experience depth. Be specific and ask for details that reveal " +
		"competence."

	behaviorSystem = "You are a behavioral interviewer. Ask open-ended questions about " +
		"communication, teamwork, leadership, and conflict resolution that invite the " +
		"candidate to describe situations, actions, and results (STAR style). Keep it " +
		"conversational."

	evaluatorSystem = "You are an interview evaluator. Given a question and a candidate's " +
		"answer, provide a numeric score 0-10, a short feedback paragraph, and up to 3 " +
		"concrete recommendations. Return ONLY valid JSON: " +
		`{"score": int, "feedback": str, "recommendations": [str]}. ` +
		"If the answer is empty or irrelevant, give a low score and note that in the feedback."

	// contextLimit caps how much resume/JD text is embedded into prompts.
	contextLimit = 500

	// matchContextLimit is wider: fit scoring reads more of both documents.
	matchContextLimit = 1000
)

// Coding generates the coding problem and its follow-up prompts.
type Coding struct {
	*Agent
}

func NewCoding(providers Providers, log *zap.Logger) *Coding {
	return &Coding{Agent: New("coding", codingSystem, providers, log)}
}

// GenerateProblem produces one coding problem of the given difficulty,
// grounded in the candidate's resume and the job description.
func (c *Coding) GenerateProblem(ctx context.Context, resumeText, jdText, difficulty string) string {
	prompt := fmt.Sprintf(
		"Generate ONE %s difficulty coding interview problem relevant to this role.\n"+
			"Resume context:\n%s\n\nJob description:\n%s\n\n"+
			"Return only the problem statement, constraints, and sample I/O.",
		difficulty, clip(resumeText, contextLimit), clip(jdText, contextLimit),
	)
	return c.Ask(ctx, prompt)
}

// GenerateFollowups produces short follow-up prompts for the given problem.
func (c *Coding) GenerateFollowups(ctx context.Context, problem string) string {
	prompt := fmt.Sprintf(
		"The following problem was asked:\n%s\n\n"+
			"Produce 2 short follow-up prompts that ask the candidate for:\n"+
			"1) an outline of the brute-force approach, 2) a better/optimal approach and "+
			"time/space complexity.\nReturn as bullet lines.",
		problem,
	)
	return c.Ask(ctx, prompt)
}

// Resume probes the candidate's stated experience.
type Resume struct {
	*Agent
}

func NewResume(providers Providers, log *zap.Logger) *Resume {
	return &Resume{Agent: New("resume", resumeSystem, providers, log)}
}

// GenerateQuestions produces up to count experience-probing questions.
func (r *Resume) GenerateQuestions(ctx context.Context, resumeText, jdText string, count int) []string {
	prompt := fmt.Sprintf(
		"Based on the resume and job description below, produce %d focused interview "+
			"questions that probe the candidate's experience and skills. Number them, one "+
			"per line.\n\nResume:\n%s\n\nJD:\n%s",
		count, resumeText, jdText,
	)
	return SplitQuestions(r.Ask(ctx, prompt))
}

// Behavior asks culture-fit and soft-skill questions.
type Behavior struct {
	*Agent
}

func NewBehavior(providers Providers, log *zap.Logger) *Behavior {
	return &Behavior{Agent: New("behavior", behaviorSystem, providers, log)}
}

// GenerateQuestions produces up to count behavioral questions.
func (b *Behavior) GenerateQuestions(ctx context.Context, count int) []string {
	prompt := fmt.Sprintf(
		"Generate %d behavioral interview questions suitable for the job role. Number them, one per line.",
		count,
	)
	return SplitQuestions(b.Ask(ctx, prompt))
}

// Evaluator scores answers and writes the final report prompt responses.
type Evaluator struct {
	*Agent
}

func NewEvaluator(providers Providers, log *zap.Logger) *Evaluator {
	return &Evaluator{Agent: New("evaluator", evaluatorSystem, providers, log)}
}

// Evaluate scores one (question, answer) pair for the given round. In teach
// mode the evaluator is asked for detailed guidance, otherwise brief
// feedback. The result is always a well-typed record: unparseable model
// output degrades through the extractor instead of failing.
func (e *Evaluator) Evaluate(ctx context.Context, question, answer, round, mode string) evaluation.Record {
	verbosity := "Keep the feedback brief."
	if mode == "teach" {
		verbosity = "Include detailed guidance and a model approach in the feedback."
	}

	prompt := fmt.Sprintf(
		"QUESTION:\n%s\n\nCANDIDATE ANSWER:\n%s\n\n"+
			"Evaluate this answer for a %s interview round. %s "+
			`Return JSON: {"score": int, "feedback": str, "recommendations": [str]}.`,
		question, answer, round, verbosity,
	)

	return evaluation.ParseRecord(e.Ask(ctx, prompt))
}

// MatchScore rates how well a resume fits a job description: a 0-100
// percentage with the candidate's key strengths and gaps. Unparseable model
// output degrades to a zero-percent match carrying the raw text.
func (e *Evaluator) MatchScore(ctx context.Context, resumeText, jdText string) evaluation.Match {
	prompt := fmt.Sprintf(
		"Compare the following resume and job description.\n\n"+
			"Resume:\n%s\n\nJob Description:\n%s\n\n"+
			"Task:\n"+
			"1. Give a match percentage (0-100) for how well the resume fits the job.\n"+
			"2. List 3 key strengths that make the candidate a good fit.\n"+
			"3. List 3 gaps the candidate should improve.\n"+
			`Return ONLY valid JSON: {"match_percent": int, "strengths": [str], "gaps": [str]}.`,
		clip(resumeText, matchContextLimit), clip(jdText, matchContextLimit),
	)

	return evaluation.ParseMatch(e.Ask(ctx, prompt))
}

// SplitQuestions turns a numbered or bulleted model reply into a clean
// ordered question list. Sentinel failure strings yield an empty list so the
// session flow can skip the affected phase.
func SplitQuestions(text string) []string {
	if IsFailure(text) {
		return nil
	}

	var questions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(line, " \t-*0123456789.)")
		if line == "" {
			continue
		}
		questions = append(questions, line)
	}
	return questions
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
