package progression

import (
	"context"
	"errors"
	"sync"
	"time"
)

// newCourse builds a snapshot with one module per entry in videos. Module i
// has id (i+1)*100 and its videos are numbered from there. Only module 0 is
// open.
func newCourse(purchased bool, videos ...int) *Snapshot {
	s := &Snapshot{CourseID: 1, IsPurchased: purchased, FreePreviewVideos: 3}
	for i, n := range videos {
		m := Module{ID: uint(i+1) * 100, Title: "module", IsLocked: i > 0}
		for j := 0; j < n; j++ {
			m.Videos = append(m.Videos, Video{ID: m.ID + uint(j) + 1, Title: "video", DurationSeconds: 60})
		}
		s.Modules = append(s.Modules, m)
	}
	return s
}

func withAssessment(s *Snapshot, moduleIndex int, id uint) *Snapshot {
	s.Modules[moduleIndex].Assessment = &AssessmentSummary{ID: id, TotalMarks: 10}
	return s
}

func completeAll(s *Snapshot, moduleIndex int) *Snapshot {
	for j := range s.Modules[moduleIndex].Videos {
		s.Modules[moduleIndex].Videos[j].IsCompleted = true
	}
	return s
}

var errNetwork = errors.New("connection reset by peer")

// fakeGateway is an in-memory backend with switchable failures.
type fakeGateway struct {
	mu sync.Mutex

	snapshot  *Snapshot
	fetchErr  error
	fetchHook func(call int) // runs before a fetch returns, with the 1-based call number

	completeErr   error
	completeCalls []uint
	unlockNext    bool // reported by CompleteVideo for the following video
	enforceOrder  bool // refuse completions of videos the server still holds locked

	canAttempt    bool
	canAttemptErr error

	questions    *QuestionSet
	questionsErr error

	submitResult *AssessmentResult
	submitErr    error
	submitGate   chan struct{} // when set, SubmitAssessment blocks until it is closed
	submitCalls  int

	unlockModuleOK  bool
	unlockModuleErr error
	unlockCalls     int

	fetchCalls int
}

func (g *fakeGateway) FetchCourseSnapshot(ctx context.Context, learner Learner, courseID uint) (*Snapshot, error) {
	g.mu.Lock()
	g.fetchCalls++
	call := g.fetchCalls
	hook := g.fetchHook
	snap, err := g.snapshot.Clone(), g.fetchErr
	g.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (g *fakeGateway) CompleteVideo(ctx context.Context, learner Learner, courseID, moduleID, videoID uint) (*CompleteVideoResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.completeCalls = append(g.completeCalls, videoID)
	if g.completeErr != nil {
		return nil, g.completeErr
	}
	mi, vi, ok := g.snapshot.Locate(moduleID, videoID)
	if !ok {
		return nil, &RejectedError{Op: "complete_video", StatusCode: 404, Message: "Video not found!"}
	}
	if g.enforceOrder && !IsVideoUnlockable(g.snapshot, mi, vi) {
		return nil, &RejectedError{Op: "complete_video", StatusCode: 403, Message: "Video is locked!"}
	}
	m := &g.snapshot.Modules[mi]
	m.Videos[vi].IsCompleted = true
	unlocked := false
	if vi+1 < len(m.Videos) && g.unlockNext {
		m.Videos[vi+1].IsLocked = false
		unlocked = true
	}
	fresh := m.Clone()
	return &CompleteVideoResult{Completed: true, Unlocked: unlocked, Module: &fresh}, nil
}

func (g *fakeGateway) CanAttemptAssessment(ctx context.Context, learner Learner, assessmentID uint) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canAttempt, g.canAttemptErr
}

func (g *fakeGateway) GetAssessmentQuestions(ctx context.Context, learner Learner, assessmentID uint) (*QuestionSet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.questionsErr != nil {
		return nil, g.questionsErr
	}
	return g.questions, nil
}

func (g *fakeGateway) SubmitAssessment(ctx context.Context, learner Learner, assessmentID uint, answers map[uint]string) (*AssessmentResult, error) {
	g.mu.Lock()
	g.submitCalls++
	gate := g.submitGate
	res, err := g.submitResult, g.submitErr
	g.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return res, err
}

func (g *fakeGateway) UnlockNextModule(ctx context.Context, learner Learner, courseID, moduleID uint) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unlockCalls++
	if g.unlockModuleErr != nil {
		return false, g.unlockModuleErr
	}
	if g.unlockModuleOK {
		if mi := g.snapshot.ModuleIndex(moduleID); mi >= 0 && mi+1 < len(g.snapshot.Modules) {
			g.snapshot.Modules[mi+1].IsLocked = false
		}
	}
	return g.unlockModuleOK, nil
}

func (g *fakeGateway) set(fn func(g *fakeGateway)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

// manualScheduler collects scheduled work so tests decide when it runs.
type manualScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	tasks  []func()
}

func (m *manualScheduler) Schedule(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, d)
	m.tasks = append(m.tasks, fn)
}

// RunAll runs everything scheduled so far, including work scheduled while running.
func (m *manualScheduler) RunAll() {
	for {
		m.mu.Lock()
		tasks := m.tasks
		m.tasks = nil
		m.mu.Unlock()
		if len(tasks) == 0 {
			return
		}
		for _, fn := range tasks {
			fn()
		}
	}
}

// RunOnce runs only the work scheduled so far.
func (m *manualScheduler) RunOnce() {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()
	for _, fn := range tasks {
		fn()
	}
}

func (m *manualScheduler) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *manualScheduler) Delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.delays...)
}
