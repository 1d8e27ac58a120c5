package progression

import "context"

// Learner identifies who the engine acts for. It is passed into every
// gateway call instead of being looked up from ambient state.
type Learner struct {
	UserID uint
	Token  string // bearer credential, opaque to the engine
}

// CompleteVideoResult is the server's answer to a video completion.
type CompleteVideoResult struct {
	Completed bool    `json:"completed"`
	Unlocked  bool    `json:"unlocked"`         // the following video became unlockable
	Module    *Module `json:"module,omitempty"` // fresh module subtree, when the server sends one
}

// Option is one answer choice of a question, lettered A to D.
type Option struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// Question is a single multiple-choice assessment question.
type Question struct {
	ID            uint     `json:"id"`
	Text          string   `json:"text"`
	Options       []Option `json:"options"`
	CorrectLetter string   `json:"correct_letter,omitempty"` // empty until the server reveals it
}

// QuestionSet is what the server hands out for one attempt.
type QuestionSet struct {
	AssessmentID     uint       `json:"assessment_id"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
	Questions        []Question `json:"questions"`
}

// QuestionResult is the server's verdict on one answer.
type QuestionResult struct {
	QuestionID    uint   `json:"question_id"`
	Selected      string `json:"selected"`
	CorrectLetter string `json:"correct_letter"`
	IsCorrect     bool   `json:"is_correct"`
}

// AssessmentResult is the authoritative outcome of a submission. The client
// renders it as-is and never recomputes pass or fail.
type AssessmentResult struct {
	Passed             bool             `json:"passed"`
	ObtainedMarks      int              `json:"obtained_marks"`
	TotalMarks         int              `json:"total_marks"`
	Percentage         float64          `json:"percentage"`
	QuestionResults    []QuestionResult `json:"question_results"`
	NextModuleUnlocked bool             `json:"next_module_unlocked"`
	NextModuleID       uint             `json:"next_module_id,omitempty"`
}

// Gateway is the boundary to the authoritative backend. Every call may be
// slow or fail; implementations return *RejectedError for authoritative
// refusals and any other error for transient failures.
type Gateway interface {
	FetchCourseSnapshot(ctx context.Context, learner Learner, courseID uint) (*Snapshot, error)
	CompleteVideo(ctx context.Context, learner Learner, courseID, moduleID, videoID uint) (*CompleteVideoResult, error)
	CanAttemptAssessment(ctx context.Context, learner Learner, assessmentID uint) (bool, error)
	GetAssessmentQuestions(ctx context.Context, learner Learner, assessmentID uint) (*QuestionSet, error)
	SubmitAssessment(ctx context.Context, learner Learner, assessmentID uint, answers map[uint]string) (*AssessmentResult, error)
	UnlockNextModule(ctx context.Context, learner Learner, courseID, moduleID uint) (bool, error)
}
