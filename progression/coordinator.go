package progression

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"learnhub/metrics"
)

// SyncState tracks one learner action through the coordinator:
//
//	Idle -> OptimisticallyApplied -> Syncing -> Reconciled
//	                                         -> SyncFailed -> (retry or refresh)
type SyncState string

const (
	StateIdle                  SyncState = "IDLE"
	StateOptimisticallyApplied SyncState = "OPTIMISTICALLY_APPLIED"
	StateSyncing               SyncState = "SYNCING"
	StateReconciled            SyncState = "RECONCILED"
	StateSyncFailed            SyncState = "SYNC_FAILED"
)

// ActionResult reports where a learner action ended up.
type ActionResult struct {
	State       SyncState
	PendingSync bool // the completion is kept locally and will be retried
	Unlocked    bool // the server reported the following video unlocked
}

// Options tunes retry and reconciliation timing.
type Options struct {
	RetryDelay     time.Duration // first retry delay for a failed completion
	MaxRetryDelay  time.Duration // cap for the exponential retry delay
	RefreshDelay   time.Duration // bound on how long a scheduled refresh waits
	RequestTimeout time.Duration // timeout for calls made from scheduled work

	// Schedule runs fn after d. Defaults to time.AfterFunc.
	Schedule func(d time.Duration, fn func())
}

func (o Options) withDefaults() Options {
	if o.RetryDelay <= 0 {
		o.RetryDelay = 5 * time.Second
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = time.Minute
	}
	if o.MaxRetryDelay < o.RetryDelay {
		o.MaxRetryDelay = o.RetryDelay
	}
	if o.RefreshDelay <= 0 {
		o.RefreshDelay = 2 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 15 * time.Second
	}
	if o.Schedule == nil {
		o.Schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	return o
}

type pendingCompletion struct {
	moduleID uint
	videoID  uint
	attempts int
}

// Coordinator is the single writer of a course snapshot. Every learner
// action goes through four steps: predicate check, optimistic apply,
// gateway call, reconciliation.
type Coordinator struct {
	gateway  Gateway
	store    *Store
	learner  Learner
	courseID uint
	opts     Options

	mu               sync.Mutex
	pending          map[uint]*pendingCompletion // by video id
	confirmed        map[uint]bool               // assessment ids the server cleared for one attempt
	retryScheduled   bool
	refreshScheduled bool
}

// NewCoordinator returns a coordinator for one learner and course. Call
// Refresh to load the first snapshot.
func NewCoordinator(gw Gateway, learner Learner, courseID uint, opts Options) *Coordinator {
	return &Coordinator{
		gateway:   gw,
		store:     NewStore(),
		learner:   learner,
		courseID:  courseID,
		opts:      opts.withDefaults(),
		pending:   make(map[uint]*pendingCompletion),
		confirmed: make(map[uint]bool),
	}
}

// Store exposes the snapshot store for readers and subscribers.
func (c *Coordinator) Store() *Store {
	return c.store
}

// Snapshot returns a copy of the current snapshot.
func (c *Coordinator) Snapshot() *Snapshot {
	return c.store.Snapshot()
}

// CourseID returns the course this coordinator manages.
func (c *Coordinator) CourseID() uint {
	return c.courseID
}

// Refresh refetches the whole snapshot. A response that arrives after a
// later refresh was applied is discarded.
func (c *Coordinator) Refresh(ctx context.Context) error {
	seq := c.store.NextSeq()
	snap, err := c.gateway.FetchCourseSnapshot(ctx, c.learner, c.courseID)
	if err != nil {
		metrics.SyncFailures.WithLabelValues("refresh").Inc()
		log.Printf("[COORDINATOR] refresh of course %d failed: %v", c.courseID, err)
		if !IsRejected(err) {
			c.scheduleRefreshIn(c.opts.RetryDelay)
		}
		return fmt.Errorf("refresh course %d: %w", c.courseID, err)
	}
	if !c.store.Replace(seq, snap) {
		metrics.StaleResponses.Inc()
		log.Printf("[COORDINATOR] discarded stale snapshot for course %d (seq %d)", c.courseID, seq)
	}
	return nil
}

// ScheduleRefresh arranges a full refresh within the configured delay.
// Calls made while one is already scheduled are merged.
func (c *Coordinator) ScheduleRefresh() {
	c.scheduleRefreshIn(c.opts.RefreshDelay)
}

func (c *Coordinator) scheduleRefreshIn(d time.Duration) {
	c.mu.Lock()
	if c.refreshScheduled {
		c.mu.Unlock()
		return
	}
	c.refreshScheduled = true
	c.mu.Unlock()

	c.opts.Schedule(d, func() {
		c.mu.Lock()
		c.refreshScheduled = false
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.RequestTimeout)
		defer cancel()
		_ = c.Refresh(ctx)
	})
}

// CompleteVideo marks a video completed. The completion is applied locally
// before the server is asked, and it is never rolled back: if the server
// cannot be reached the completion stays and is retried in the background.
func (c *Coordinator) CompleteVideo(ctx context.Context, moduleID, videoID uint) (ActionResult, error) {
	snap := c.store.Snapshot()
	if snap == nil {
		return ActionResult{State: StateIdle}, ErrNoSnapshot
	}

	mi, vi, ok := snap.Locate(moduleID, videoID)
	if !ok {
		log.Printf("[COORDINATOR] complete: module %d video %d not in snapshot of course %d", moduleID, videoID, c.courseID)
		c.ScheduleRefresh()
		return ActionResult{State: StateIdle}, fmt.Errorf("%w: module %d video %d", ErrUnknownItem, moduleID, videoID)
	}
	if !IsVideoUnlockable(snap, mi, vi) {
		return ActionResult{State: StateIdle}, fmt.Errorf("%w: module %d video %d", ErrLocked, moduleID, videoID)
	}
	if snap.Modules[mi].Videos[vi].IsCompleted {
		if c.IsPending(videoID) {
			return ActionResult{State: StateSyncFailed, PendingSync: true}, nil
		}
		return ActionResult{State: StateReconciled}, nil
	}

	_, err := c.store.Apply(ChangeOptimistic, func(s *Snapshot) error {
		mi, vi, ok := s.Locate(moduleID, videoID)
		if !ok {
			return fmt.Errorf("%w: module %d video %d", ErrUnknownItem, moduleID, videoID)
		}
		if !IsVideoUnlockable(s, mi, vi) {
			return fmt.Errorf("%w: module %d video %d", ErrLocked, moduleID, videoID)
		}
		s.Modules[mi].Videos[vi].IsCompleted = true
		return nil
	}, moduleID)
	if err != nil {
		return ActionResult{State: StateIdle}, err
	}

	// the server only accepts completions in order
	if c.hasPendingBefore(moduleID, videoID) {
		log.Printf("[COORDINATOR] completion of video %d queued behind a pending completion", videoID)
		c.addPending(moduleID, videoID)
		return ActionResult{State: StateSyncFailed, PendingSync: true}, nil
	}

	return c.syncCompletion(ctx, moduleID, videoID)
}

func (c *Coordinator) syncCompletion(ctx context.Context, moduleID, videoID uint) (ActionResult, error) {
	seq := c.store.NextSeq()
	res, err := c.gateway.CompleteVideo(ctx, c.learner, c.courseID, moduleID, videoID)
	if err != nil {
		metrics.SyncFailures.WithLabelValues("complete_video").Inc()
		if IsRejected(err) && c.hasPendingBefore(moduleID, videoID) {
			log.Printf("[COORDINATOR] completion of video %d refused ahead of a pending completion, queued: %v", videoID, err)
			c.addPending(moduleID, videoID)
			return ActionResult{State: StateSyncFailed, PendingSync: true}, nil
		}
		if IsRejected(err) {
			// the local completion stays; the server decides the lock state
			log.Printf("[COORDINATOR] server rejected completion of video %d: %v", videoID, err)
			c.ScheduleRefresh()
			return ActionResult{State: StateSyncFailed}, err
		}
		log.Printf("[COORDINATOR] completion of video %d pending sync: %v", videoID, err)
		c.addPending(moduleID, videoID)
		return ActionResult{State: StateSyncFailed, PendingSync: true}, nil
	}

	c.reconcileCompletion(ctx, seq, moduleID, res)
	return ActionResult{State: StateReconciled, Unlocked: res.Unlocked}, nil
}

func (c *Coordinator) reconcileCompletion(ctx context.Context, seq uint64, moduleID uint, res *CompleteVideoResult) {
	if res.Module == nil {
		c.ScheduleRefresh()
	} else if !c.store.ReplaceModule(seq, *res.Module) {
		metrics.StaleResponses.Inc()
		log.Printf("[COORDINATOR] module %d subtree from seq %d not applied", moduleID, seq)
		c.ScheduleRefresh()
	}
	c.advanceIfOpen(ctx, moduleID)
}

// advanceIfOpen opens the next module when the finished module has no
// assessment to gate it.
func (c *Coordinator) advanceIfOpen(ctx context.Context, moduleID uint) {
	snap := c.store.Snapshot()
	mi := snap.ModuleIndex(moduleID)
	if mi < 0 || mi+1 >= len(snap.Modules) {
		return
	}
	next := snap.Modules[mi+1]
	if snap.Modules[mi].Assessment != nil || !next.IsLocked || !IsNextModuleUnlockable(snap, mi) {
		return
	}

	ok, err := c.gateway.UnlockNextModule(ctx, c.learner, c.courseID, moduleID)
	if err != nil {
		metrics.SyncFailures.WithLabelValues("unlock_next_module").Inc()
		log.Printf("[COORDINATOR] unlock after module %d failed: %v", moduleID, err)
		c.ScheduleRefresh()
		return
	}
	if ok {
		c.mirrorModuleUnlock(next.ID)
	}
	c.ScheduleRefresh()
}

// mirrorModuleUnlock reflects a server-side module unlock locally until the
// next refresh confirms it.
func (c *Coordinator) mirrorModuleUnlock(moduleID uint) {
	_, err := c.store.Apply(ChangeOptimistic, func(s *Snapshot) error {
		idx := s.ModuleIndex(moduleID)
		if idx < 0 {
			return fmt.Errorf("%w: module %d", ErrUnknownItem, moduleID)
		}
		s.Modules[idx].IsLocked = false
		if len(s.Modules[idx].Videos) > 0 {
			s.Modules[idx].Videos[0].IsLocked = false
		}
		return nil
	}, moduleID)
	if err != nil {
		log.Printf("[COORDINATOR] could not mirror unlock of module %d: %v", moduleID, err)
	}
}

func (c *Coordinator) addPending(moduleID, videoID uint) {
	c.mu.Lock()
	p, ok := c.pending[videoID]
	if !ok {
		p = &pendingCompletion{moduleID: moduleID, videoID: videoID}
		c.pending[videoID] = p
	}
	p.attempts++
	delay := c.backoff(p.attempts)
	n := len(c.pending)
	c.mu.Unlock()

	metrics.PendingCompletions.Set(float64(n))
	c.store.Notify(Change{Reason: ChangePendingSync, ModuleID: moduleID})
	c.scheduleRetry(delay)
}

// hasPendingBefore reports whether a completion earlier in course order
// than the given video still awaits the server.
func (c *Coordinator) hasPendingBefore(moduleID, videoID uint) bool {
	snap := c.store.Snapshot()
	mi, vi, ok := snap.Locate(moduleID, videoID)
	if !ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pending {
		if p.videoID == videoID {
			continue
		}
		pm, pv, ok := snap.Locate(p.moduleID, p.videoID)
		if ok && (pm < mi || (pm == mi && pv < vi)) {
			return true
		}
	}
	return false
}

func (c *Coordinator) backoff(attempts int) time.Duration {
	d := c.opts.RetryDelay
	for i := 1; i < attempts && d < c.opts.MaxRetryDelay; i++ {
		d *= 2
	}
	if d > c.opts.MaxRetryDelay {
		d = c.opts.MaxRetryDelay
	}
	return d
}

func (c *Coordinator) scheduleRetry(d time.Duration) {
	c.mu.Lock()
	if c.retryScheduled {
		c.mu.Unlock()
		return
	}
	c.retryScheduled = true
	c.mu.Unlock()

	c.opts.Schedule(d, func() {
		c.mu.Lock()
		c.retryScheduled = false
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.RequestTimeout)
		defer cancel()
		c.RetryPending(ctx)
	})
}

// IsPending reports whether a completion of the video still awaits the server.
func (c *Coordinator) IsPending(videoID uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[videoID]
	return ok
}

// PendingVideos returns the ids of completions that still await the server.
func (c *Coordinator) PendingVideos() []uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uint, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RetryPending resends pending completions in course order and returns how
// many remain. Once the set drains, a full refresh confirms the server agrees.
func (c *Coordinator) RetryPending(ctx context.Context) int {
	items := c.pendingInCourseOrder()
	if len(items) == 0 {
		return 0
	}

	for _, p := range items {
		seq := c.store.NextSeq()
		res, err := c.gateway.CompleteVideo(ctx, c.learner, c.courseID, p.moduleID, p.videoID)
		if err != nil {
			metrics.SyncFailures.WithLabelValues("complete_video").Inc()
			if IsRejected(err) {
				log.Printf("[COORDINATOR] server rejected pending completion of video %d: %v", p.videoID, err)
				c.dropPending(p.videoID)
				continue
			}
			// later completions depend on this one server-side; keep the order
			log.Printf("[COORDINATOR] retry of video %d failed: %v", p.videoID, err)
			break
		}
		c.dropPending(p.videoID)
		c.reconcileCompletion(ctx, seq, p.moduleID, res)
	}

	c.mu.Lock()
	remaining := len(c.pending)
	maxAttempts := 0
	for _, p := range c.pending {
		p.attempts++
		if p.attempts > maxAttempts {
			maxAttempts = p.attempts
		}
	}
	c.mu.Unlock()
	metrics.PendingCompletions.Set(float64(remaining))

	if remaining > 0 {
		c.scheduleRetry(c.backoff(maxAttempts))
		return remaining
	}
	_ = c.Refresh(ctx)
	return 0
}

func (c *Coordinator) dropPending(videoID uint) {
	c.mu.Lock()
	delete(c.pending, videoID)
	c.mu.Unlock()
}

func (c *Coordinator) pendingInCourseOrder() []pendingCompletion {
	c.mu.Lock()
	items := make([]pendingCompletion, 0, len(c.pending))
	for _, p := range c.pending {
		items = append(items, *p)
	}
	c.mu.Unlock()

	snap := c.store.Snapshot()
	rank := func(p pendingCompletion) (int, int) {
		mi, vi, ok := snap.Locate(p.moduleID, p.videoID)
		if !ok {
			return len(snap.Modules), int(p.videoID)
		}
		return mi, vi
	}
	sort.Slice(items, func(i, j int) bool {
		mi, vi := rank(items[i])
		mj, vj := rank(items[j])
		if mi != mj {
			return mi < mj
		}
		return vi < vj
	})
	return items
}

// OpenAssessment starts an attempt at the module's assessment. The local
// availability check runs first; the server then has the final word on
// whether an attempt is allowed right now.
func (c *Coordinator) OpenAssessment(ctx context.Context, moduleID uint) (*AssessmentSession, error) {
	assessmentID, err := c.checkAssessment(moduleID)
	if err != nil {
		return nil, err
	}
	if err := c.confirmAttempt(ctx, assessmentID); err != nil {
		return nil, err
	}

	session := NewAssessmentSession(assessmentID, moduleID, c)
	qs, err := c.gateway.GetAssessmentQuestions(ctx, c.learner, assessmentID)
	if err != nil {
		metrics.SyncFailures.WithLabelValues("get_questions").Inc()
		session.Fail(err)
		return session, fmt.Errorf("load questions for assessment %d: %w", assessmentID, err)
	}
	if err := session.Load(qs); err != nil {
		return session, err
	}
	return session, nil
}

// RetryAssessment reopens a finished or failed session for a new attempt.
func (c *Coordinator) RetryAssessment(ctx context.Context, session *AssessmentSession) error {
	if _, err := c.checkAssessment(session.ModuleID); err != nil {
		return err
	}
	if err := c.confirmAttempt(ctx, session.AssessmentID); err != nil {
		return err
	}
	qs, err := c.gateway.GetAssessmentQuestions(ctx, c.learner, session.AssessmentID)
	if err != nil {
		metrics.SyncFailures.WithLabelValues("get_questions").Inc()
		return fmt.Errorf("load questions for assessment %d: %w", session.AssessmentID, err)
	}
	return session.Restart(qs)
}

func (c *Coordinator) checkAssessment(moduleID uint) (uint, error) {
	snap := c.store.Snapshot()
	if snap == nil {
		return 0, ErrNoSnapshot
	}
	mi := snap.ModuleIndex(moduleID)
	if mi < 0 {
		c.ScheduleRefresh()
		return 0, fmt.Errorf("%w: module %d", ErrUnknownItem, moduleID)
	}
	m := &snap.Modules[mi]
	if m.Assessment == nil {
		return 0, fmt.Errorf("%w: module %d has no assessment", ErrAssessmentUnavailable, moduleID)
	}
	if m.IsLocked || !IsAssessmentAvailable(m) {
		return 0, fmt.Errorf("%w: module %d", ErrAssessmentUnavailable, moduleID)
	}
	return m.Assessment.ID, nil
}

func (c *Coordinator) confirmAttempt(ctx context.Context, assessmentID uint) error {
	ok, err := c.gateway.CanAttemptAssessment(ctx, c.learner, assessmentID)
	if err != nil {
		metrics.SyncFailures.WithLabelValues("can_attempt").Inc()
		return fmt.Errorf("check attempt for assessment %d: %w", assessmentID, err)
	}
	if !ok {
		c.setConfirmed(assessmentID, false)
		if err := c.Refresh(ctx); err != nil {
			log.Printf("[COORDINATOR] refresh after refused attempt failed: %v", err)
		}
		return fmt.Errorf("%w: assessment %d", ErrAttemptNotAllowed, assessmentID)
	}
	c.setConfirmed(assessmentID, true)
	return nil
}

func (c *Coordinator) setConfirmed(assessmentID uint, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.confirmed[assessmentID] = true
	} else {
		delete(c.confirmed, assessmentID)
	}
}

func (c *Coordinator) isConfirmed(assessmentID uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed[assessmentID]
}

// SubmitAssessment sends answers for a confirmed attempt. The pass or fail
// verdict comes from the server. On a pass that opened the next module the
// unlock is mirrored locally, and a refresh is scheduled either way.
func (c *Coordinator) SubmitAssessment(ctx context.Context, assessmentID, moduleID uint, answers map[uint]string) (*AssessmentResult, error) {
	snap := c.store.Snapshot()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	mi := snap.ModuleIndex(moduleID)
	if mi < 0 || snap.Modules[mi].Assessment == nil || snap.Modules[mi].Assessment.ID != assessmentID {
		c.ScheduleRefresh()
		return nil, fmt.Errorf("%w: assessment %d in module %d", ErrUnknownItem, assessmentID, moduleID)
	}
	if !IsAssessmentAvailable(&snap.Modules[mi]) {
		return nil, fmt.Errorf("%w: module %d", ErrAssessmentUnavailable, moduleID)
	}
	if !c.isConfirmed(assessmentID) {
		return nil, fmt.Errorf("%w: assessment %d", ErrAttemptNotConfirmed, assessmentID)
	}

	res, err := c.gateway.SubmitAssessment(ctx, c.learner, assessmentID, answers)
	if err != nil {
		metrics.SyncFailures.WithLabelValues("submit_assessment").Inc()
		if IsRejected(err) {
			c.setConfirmed(assessmentID, false)
			c.ScheduleRefresh()
		}
		return nil, fmt.Errorf("submit assessment %d: %w", assessmentID, err)
	}
	c.setConfirmed(assessmentID, false)

	c.applyAssessmentResult(moduleID, res)
	c.ScheduleRefresh()
	return res, nil
}

func (c *Coordinator) applyAssessmentResult(moduleID uint, res *AssessmentResult) {
	ids := []uint{moduleID}
	var nextID uint
	if res.Passed && res.NextModuleUnlocked {
		snap := c.store.Snapshot()
		next := snap.ModuleIndex(moduleID) + 1
		if res.NextModuleID != 0 {
			next = snap.ModuleIndex(res.NextModuleID)
		}
		if next > 0 && next < len(snap.Modules) {
			nextID = snap.Modules[next].ID
			ids = append(ids, nextID)
		}
	}

	_, err := c.store.Apply(ChangeOptimistic, func(s *Snapshot) error {
		mi := s.ModuleIndex(moduleID)
		if mi < 0 || s.Modules[mi].Assessment == nil {
			return fmt.Errorf("%w: module %d", ErrUnknownItem, moduleID)
		}
		a := s.Modules[mi].Assessment
		a.Attempts++
		a.Passed = a.Passed || res.Passed
		a.ObtainedMarks = res.ObtainedMarks
		a.TotalMarks = res.TotalMarks

		if nextID == 0 {
			return nil
		}
		if next := s.ModuleIndex(nextID); next >= 0 {
			s.Modules[next].IsLocked = false
			if len(s.Modules[next].Videos) > 0 {
				s.Modules[next].Videos[0].IsLocked = false
			}
		}
		return nil
	}, ids...)
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		log.Printf("[COORDINATOR] could not apply result for module %d: %v", moduleID, err)
	}
}
