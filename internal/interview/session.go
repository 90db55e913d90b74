// Package interview owns the multi-round session state machine and the
// orchestration engine driving it.
package interview

import (
	"sync"
	"time"

	"github.com/questlabs/interviewd/internal/evaluation"
)

// Round is one phase of the interview. Rounds only advance, never regress.
type Round int

const (
	RoundCoding Round = iota
	RoundResume
	RoundBehavior
	RoundDone
)

func (r Round) String() string {
	switch r {
	case RoundCoding:
		return "coding"
	case RoundResume:
		return "resume"
	case RoundBehavior:
		return "behavior"
	case RoundDone:
		return "done"
	default:
		return "unknown"
	}
}

// Mode selects the feedback verbosity policy.
type Mode string

const (
	ModeTeach      Mode = "teach"
	ModeExperience Mode = "experience"
)

// Valid reports whether the mode is one of the two known policies.
func (m Mode) Valid() bool {
	return m == ModeTeach || m == ModeExperience
}

// CodingQuestions is the fixed coding-phase material. The second question is
// chosen adaptively between the easy and hard branch.
type CodingQuestions struct {
	Primary    string `json:"primary"`
	Followups  string `json:"followups"`
	EasyBranch string `json:"easy_branch"`
	HardBranch string `json:"hard_branch"`
}

// QuestionSet is immutable once the session is created.
type QuestionSet struct {
	Coding   CodingQuestions `json:"coding"`
	Resume   []string        `json:"resume"`
	Behavior []string        `json:"behavior"`
}

// AnswerRecord is immutable once appended.
type AnswerRecord struct {
	Question   string            `json:"question"`
	Answer     string            `json:"answer"`
	Evaluation evaluation.Record `json:"evaluation"`
}

// Progress is the mutable part of a session. ResumeIndex and BehaviorIndex
// are meaningful only while the matching round is active; they are ignored
// but not reset otherwise.
type Progress struct {
	Round         Round          `json:"round"`
	Answers       []AnswerRecord `json:"answers"`
	ResumeIndex   int            `json:"resume_index"`
	BehaviorIndex int            `json:"behavior_index"`
}

// Session is one interview instance. The mutex serializes answer submission
// per session; sessions never contend with one another.
type Session struct {
	ID        string      `json:"id"`
	Mode      Mode        `json:"mode"`
	Questions QuestionSet `json:"questions"`
	Progress  Progress    `json:"progress"`
	CreatedAt time.Time   `json:"created_at"`

	mu sync.Mutex
}

const hardBranchThreshold = 7

// advance applies the transition rules after an answer was appended and
// returns the next question along with whether the session just finished.
// Empty resume or behavior question lists skip straight ahead instead of
// stalling the session.
func (s *Session) advance(score int) (string, bool) {
	prog := &s.Progress

	switch prog.Round {
	case RoundCoding:
		if len(prog.Answers) == 1 {
			// Adaptive branch. The threshold is inclusive on the high
			// side; uncertain evaluations score low and route to the
			// easy branch.
			if score >= hardBranchThreshold {
				return s.Questions.Coding.HardBranch, false
			}
			return s.Questions.Coding.EasyBranch, false
		}

		prog.Round = RoundResume
		prog.ResumeIndex = 0
		if len(s.Questions.Resume) > 0 {
			return s.Questions.Resume[0], false
		}
		return s.enterBehavior()

	case RoundResume:
		prog.ResumeIndex++
		if prog.ResumeIndex < len(s.Questions.Resume) {
			return s.Questions.Resume[prog.ResumeIndex], false
		}
		return s.enterBehavior()

	case RoundBehavior:
		prog.BehaviorIndex++
		if prog.BehaviorIndex < len(s.Questions.Behavior) {
			return s.Questions.Behavior[prog.BehaviorIndex], false
		}
		prog.Round = RoundDone
		return "", true
	}

	return "", true
}

func (s *Session) enterBehavior() (string, bool) {
	s.Progress.Round = RoundBehavior
	s.Progress.BehaviorIndex = 0
	if len(s.Questions.Behavior) > 0 {
		return s.Questions.Behavior[0], false
	}
	s.Progress.Round = RoundDone
	return "", true
}
