package progression

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// SessionStatus is the state of a single assessment attempt.
type SessionStatus int

const (
	StatusLoading SessionStatus = iota
	StatusReady
	StatusSubmitting
	StatusResult
	StatusError
)

func (s SessionStatus) String() string {
	switch s {
	case StatusLoading:
		return "LOADING"
	case StatusReady:
		return "READY"
	case StatusSubmitting:
		return "SUBMITTING"
	case StatusResult:
		return "RESULT"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ValidLetters are the option letters a question may be answered with.
var ValidLetters = []string{"A", "B", "C", "D"}

// Submitter sends one attempt's answers and returns the server's verdict.
type Submitter interface {
	SubmitAssessment(ctx context.Context, assessmentID, moduleID uint, answers map[uint]string) (*AssessmentResult, error)
}

// AssessmentSession is one attempt at a module assessment:
//
//	Loading -> Ready -> Submitting -> Result
//	Loading -> Error, Submitting -> Error
//
// The countdown only runs in Ready; reaching zero forces a submission with
// whatever answers are set. Answers survive a failed submission so the
// learner can retry from Error.
type AssessmentSession struct {
	AssessmentID uint
	ModuleID     uint

	submitter Submitter

	mu        sync.Mutex
	status    SessionStatus
	questions []Question
	answers   map[uint]string
	remaining int
	timeLimit int
	result    *AssessmentResult
	err       error
}

// NewAssessmentSession returns a session in Loading.
func NewAssessmentSession(assessmentID, moduleID uint, submitter Submitter) *AssessmentSession {
	return &AssessmentSession{
		AssessmentID: assessmentID,
		ModuleID:     moduleID,
		submitter:    submitter,
		status:       StatusLoading,
		answers:      make(map[uint]string),
	}
}

// Load moves a Loading session to Ready with the given question set.
// Every question starts unanswered.
func (s *AssessmentSession) Load(qs *QuestionSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusLoading {
		return fmt.Errorf("%w: load in %s", ErrInvalidState, s.status)
	}
	s.reset(qs)
	return nil
}

// Restart reopens a finished or failed session with a fresh question set,
// for a new attempt after a failed result.
func (s *AssessmentSession) Restart(qs *QuestionSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusResult && s.status != StatusError {
		return fmt.Errorf("%w: restart in %s", ErrInvalidState, s.status)
	}
	s.reset(qs)
	return nil
}

func (s *AssessmentSession) reset(qs *QuestionSet) {
	s.questions = append([]Question(nil), qs.Questions...)
	s.answers = make(map[uint]string, len(qs.Questions))
	for _, q := range qs.Questions {
		s.answers[q.ID] = ""
	}
	s.timeLimit = qs.TimeLimitSeconds
	s.remaining = qs.TimeLimitSeconds
	s.result = nil
	s.err = nil
	s.status = StatusReady
}

// Fail moves a Loading session to Error.
func (s *AssessmentSession) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusLoading {
		s.status = StatusError
		s.err = err
	}
}

// SelectAnswer records letter for a question. Only valid in Ready.
// An empty letter clears the answer.
func (s *AssessmentSession) SelectAnswer(questionID uint, letter string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusReady {
		return fmt.Errorf("%w: select answer in %s", ErrInvalidState, s.status)
	}
	if _, ok := s.answers[questionID]; !ok {
		return fmt.Errorf("%w: unknown question %d", ErrInvalidAnswer, questionID)
	}
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter != "" && !validLetter(letter) {
		return fmt.Errorf("%w: letter %q", ErrInvalidAnswer, letter)
	}
	s.answers[questionID] = letter
	return nil
}

func validLetter(letter string) bool {
	for _, l := range ValidLetters {
		if l == letter {
			return true
		}
	}
	return false
}

// Tick advances the countdown by one second. Ticks outside Ready are ignored,
// including ticks that land while a submission is in flight. When the
// countdown reaches zero the session submits itself.
func (s *AssessmentSession) Tick(ctx context.Context) {
	s.mu.Lock()
	if s.status != StatusReady || s.timeLimit <= 0 {
		s.mu.Unlock()
		return
	}
	s.remaining--
	expired := s.remaining <= 0
	if expired {
		s.remaining = 0
	}
	s.mu.Unlock()

	if expired {
		_, _ = s.Submit(ctx)
	}
}

// StartCountdown ticks the session once per second until ctx is done or
// the session leaves Ready.
func (s *AssessmentSession) StartCountdown(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
				if st := s.Status(); st != StatusReady && st != StatusSubmitting {
					return
				}
			}
		}
	}()
}

// Submit sends the current answers. Unanswered questions go out as empty
// strings. Calling Submit while a submission is in flight is a no-op that
// returns (nil, nil); calling it after a result returns that result.
// On failure the session moves to Error and keeps its answers.
func (s *AssessmentSession) Submit(ctx context.Context) (*AssessmentResult, error) {
	s.mu.Lock()
	switch s.status {
	case StatusSubmitting:
		s.mu.Unlock()
		return nil, nil
	case StatusResult:
		res := s.result
		s.mu.Unlock()
		return res, nil
	case StatusReady:
	case StatusError:
		if s.questions == nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: nothing loaded to submit", ErrInvalidState)
		}
	default:
		st := s.status
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: submit in %s", ErrInvalidState, st)
	}
	s.status = StatusSubmitting
	answers := s.answersLocked()
	s.mu.Unlock()

	res, err := s.submitter.SubmitAssessment(ctx, s.AssessmentID, s.ModuleID, answers)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.status = StatusError
		s.err = err
		return nil, err
	}
	s.status = StatusResult
	s.result = res
	s.err = nil
	return res, nil
}

func (s *AssessmentSession) answersLocked() map[uint]string {
	out := make(map[uint]string, len(s.answers))
	for id, l := range s.answers {
		out[id] = l
	}
	return out
}

// Status returns the current state.
func (s *AssessmentSession) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Answers returns a copy of the answer map.
func (s *AssessmentSession) Answers() map[uint]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answersLocked()
}

// Questions returns a copy of the loaded questions.
func (s *AssessmentSession) Questions() []Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Question(nil), s.questions...)
}

// Remaining returns the seconds left on the countdown.
func (s *AssessmentSession) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Result returns the server verdict once in Result.
func (s *AssessmentSession) Result() *AssessmentResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err returns the error that moved the session to Error.
func (s *AssessmentSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
