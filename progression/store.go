package progression

import (
	"sync"
	"sync/atomic"
)

// ChangeReason says which kind of write produced a snapshot change.
type ChangeReason string

const (
	ChangeRefreshed   ChangeReason = "refreshed"   // full snapshot replaced from the server
	ChangeReconciled  ChangeReason = "reconciled"  // one module subtree replaced from the server
	ChangeOptimistic  ChangeReason = "optimistic"  // local write ahead of server confirmation
	ChangePendingSync ChangeReason = "pending_sync" // a completion is waiting to be retried
)

// Change is emitted to subscribers after every applied write.
type Change struct {
	Reason   ChangeReason
	Seq      uint64
	ModuleID uint // zero for whole-snapshot changes
}

// Store holds the snapshot for one learner and course. Readers always get a
// copy; writers swap in a fully built replacement, so predicate evaluation
// never sees a half-applied write.
//
// Writes are ordered by sequence numbers drawn from NextSeq. A response is
// applied only if nothing newer has already been applied to the same scope.
type Store struct {
	seq atomic.Uint64

	mu        sync.RWMutex
	snapshot  *Snapshot
	fullSeq   uint64
	moduleSeq map[uint]uint64

	subMu       sync.Mutex
	subscribers map[int]func(Change)
	nextSubID   int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		moduleSeq:   make(map[uint]uint64),
		subscribers: make(map[int]func(Change)),
	}
}

// NextSeq hands out the next request sequence number.
func (st *Store) NextSeq() uint64 {
	return st.seq.Add(1)
}

// Snapshot returns a copy of the current snapshot, or nil before the first load.
func (st *Store) Snapshot() *Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snapshot.Clone()
}

// Loaded reports whether a snapshot has been applied.
func (st *Store) Loaded() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snapshot != nil
}

// Replace applies a full snapshot fetched under seq. It returns false when
// the response is stale, i.e. a refresh dispatched later was already applied.
// Module subtrees written after seq are kept, and completions never regress.
func (st *Store) Replace(seq uint64, next *Snapshot) bool {
	if next == nil {
		return false
	}

	st.mu.Lock()
	if seq <= st.fullSeq {
		st.mu.Unlock()
		return false
	}

	merged := next.Clone()
	done := st.snapshot.completedVideoIDs()
	for i := range merged.Modules {
		id := merged.Modules[i].ID
		if ms, ok := st.moduleSeq[id]; ok && ms > seq {
			if old := st.snapshot.ModuleIndex(id); old >= 0 {
				merged.Modules[i] = st.snapshot.Modules[old].Clone()
			}
		}
		keepCompletions(&merged.Modules[i], done)
	}

	st.snapshot = merged
	st.fullSeq = seq
	for id, ms := range st.moduleSeq {
		if ms <= seq {
			delete(st.moduleSeq, id)
		}
	}
	st.mu.Unlock()

	st.notify(Change{Reason: ChangeRefreshed, Seq: seq})
	return true
}

// ReplaceModule applies a server module subtree fetched under seq. It returns
// false when the module is unknown or when a newer write covers it.
func (st *Store) ReplaceModule(seq uint64, m Module) bool {
	st.mu.Lock()
	if st.snapshot == nil || seq <= st.fullSeq || seq <= st.moduleSeq[m.ID] {
		st.mu.Unlock()
		return false
	}
	idx := st.snapshot.ModuleIndex(m.ID)
	if idx < 0 {
		st.mu.Unlock()
		return false
	}

	next := st.snapshot.Clone()
	fresh := m.Clone()
	keepCompletions(&fresh, st.snapshot.completedVideoIDs())
	next.Modules[idx] = fresh

	st.snapshot = next
	st.moduleSeq[m.ID] = seq
	st.mu.Unlock()

	st.notify(Change{Reason: ChangeReconciled, Seq: seq, ModuleID: m.ID})
	return true
}

// Apply runs fn against a copy of the snapshot and swaps it in only if fn
// succeeds. The touched modules are stamped with a fresh sequence number so
// responses dispatched before this write cannot overwrite them.
func (st *Store) Apply(reason ChangeReason, fn func(s *Snapshot) error, moduleIDs ...uint) (uint64, error) {
	st.mu.Lock()
	if st.snapshot == nil {
		st.mu.Unlock()
		return 0, ErrNoSnapshot
	}

	next := st.snapshot.Clone()
	if err := fn(next); err != nil {
		st.mu.Unlock()
		return 0, err
	}
	done := st.snapshot.completedVideoIDs()
	for i := range next.Modules {
		keepCompletions(&next.Modules[i], done)
	}

	seq := st.NextSeq()
	for _, id := range moduleIDs {
		st.moduleSeq[id] = seq
	}
	st.snapshot = next
	st.mu.Unlock()

	var moduleID uint
	if len(moduleIDs) == 1 {
		moduleID = moduleIDs[0]
	}
	st.notify(Change{Reason: reason, Seq: seq, ModuleID: moduleID})
	return seq, nil
}

// Subscribe registers fn to be called after every applied change. The
// returned func removes the subscription.
func (st *Store) Subscribe(fn func(Change)) func() {
	st.subMu.Lock()
	id := st.nextSubID
	st.nextSubID++
	st.subscribers[id] = fn
	st.subMu.Unlock()

	return func() {
		st.subMu.Lock()
		delete(st.subscribers, id)
		st.subMu.Unlock()
	}
}

// Notify emits a change without a write, e.g. when sync status changes.
func (st *Store) Notify(c Change) {
	st.notify(c)
}

func (st *Store) notify(c Change) {
	st.subMu.Lock()
	subs := make([]func(Change), 0, len(st.subscribers))
	for _, fn := range st.subscribers {
		subs = append(subs, fn)
	}
	st.subMu.Unlock()

	for _, fn := range subs {
		fn(c)
	}
}
