package progression

// IsVideoUnlockable reports whether the learner may start the video at the
// given position. Out-of-range positions and nil snapshots report false.
//
// The module gate is checked before any video-level rule: a locked module
// vetoes all of its videos no matter what their own flags say.
func IsVideoUnlockable(s *Snapshot, moduleIndex, videoIndex int) bool {
	if s == nil || moduleIndex < 0 || moduleIndex >= len(s.Modules) {
		return false
	}
	m := &s.Modules[moduleIndex]
	if videoIndex < 0 || videoIndex >= len(m.Videos) {
		return false
	}

	if m.IsLocked {
		return false
	}

	// preview-only: a course that was not purchased exposes a single video
	if !s.IsPurchased {
		return moduleIndex == 0 && videoIndex == 0
	}

	if moduleIndex == 0 && videoIndex < s.FreePreviewVideos {
		return true
	}
	if videoIndex == 0 {
		return true
	}
	return m.Videos[videoIndex-1].IsCompleted
}

// IsAssessmentAvailable reports whether every video of the module is completed.
// A module without videos never has an available assessment.
func IsAssessmentAvailable(m *Module) bool {
	if m == nil || len(m.Videos) == 0 {
		return false
	}
	for _, v := range m.Videos {
		if !v.IsCompleted {
			return false
		}
	}
	return true
}

// IsNextModuleUnlockable reports whether the module after moduleIndex may be opened:
// all of the module's videos are completed and its assessment, if any, is passed.
func IsNextModuleUnlockable(s *Snapshot, moduleIndex int) bool {
	if s == nil || moduleIndex < 0 || moduleIndex >= len(s.Modules) {
		return false
	}
	m := &s.Modules[moduleIndex]
	for _, v := range m.Videos {
		if !v.IsCompleted {
			return false
		}
	}
	return m.Assessment == nil || m.Assessment.Passed
}

// Availability is the evaluated lock state of one video, for rendering.
type Availability struct {
	ModuleID   uint `json:"module_id"`
	VideoID    uint `json:"video_id"`
	Unlockable bool `json:"unlockable"`
	Completed  bool `json:"completed"`
}

// ModuleAvailability is the evaluated state of a module and its videos.
type ModuleAvailability struct {
	ModuleID            uint           `json:"module_id"`
	Locked              bool           `json:"locked"`
	AssessmentAvailable bool           `json:"assessment_available"`
	NextUnlockable      bool           `json:"next_unlockable"`
	Videos              []Availability `json:"videos"`
}

// Evaluate runs every predicate over the snapshot so a consumer can
// re-render a consistent lock state after a change.
func Evaluate(s *Snapshot) []ModuleAvailability {
	if s == nil {
		return nil
	}
	out := make([]ModuleAvailability, len(s.Modules))
	for i := range s.Modules {
		m := &s.Modules[i]
		ma := ModuleAvailability{
			ModuleID:            m.ID,
			Locked:              m.IsLocked,
			AssessmentAvailable: m.Assessment != nil && IsAssessmentAvailable(m),
			NextUnlockable:      i+1 < len(s.Modules) && IsNextModuleUnlockable(s, i),
			Videos:              make([]Availability, len(m.Videos)),
		}
		for j, v := range m.Videos {
			ma.Videos[j] = Availability{
				ModuleID:   m.ID,
				VideoID:    v.ID,
				Unlockable: IsVideoUnlockable(s, i, j),
				Completed:  v.IsCompleted,
			}
		}
		out[i] = ma
	}
	return out
}
