package progression

// Snapshot is the last known, fully denormalized state of one course for one learner.
// Module order is significant: index 0 is the entry point.
type Snapshot struct {
	CourseID          uint     `json:"course_id"`
	IsPurchased       bool     `json:"is_purchased"`
	FreePreviewVideos int      `json:"free_preview_videos"` // leading videos of module 0 open on a purchased course
	Modules           []Module `json:"modules"`
}

// Module is a section of a course
type Module struct {
	ID         uint               `json:"id"`
	Title      string             `json:"title"`
	IsLocked   bool               `json:"is_locked"` // module-level gate, vetoes every video inside
	Videos     []Video            `json:"videos"`
	Assessment *AssessmentSummary `json:"assessment,omitempty"`
}

// Video is a single playable item within a module
type Video struct {
	ID                  uint   `json:"id"`
	Title               string `json:"title"`
	DurationSeconds     int    `json:"duration_seconds"`
	IsLocked            bool   `json:"is_locked"`
	IsCompleted         bool   `json:"is_completed"`
	IsPreview           bool   `json:"is_preview"`
	LastPositionSeconds int    `json:"last_position_seconds"` // owned by playback
}

// AssessmentSummary is the per-module assessment state carried in a snapshot
type AssessmentSummary struct {
	ID            uint `json:"id"`
	Passed        bool `json:"passed"`
	Attempts      int  `json:"attempts"`
	ObtainedMarks int  `json:"obtained_marks"`
	TotalMarks    int  `json:"total_marks"`
}

// Clone returns a deep copy of the snapshot. A nil snapshot clones to nil.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Modules = make([]Module, len(s.Modules))
	for i := range s.Modules {
		out.Modules[i] = s.Modules[i].Clone()
	}
	return &out
}

// Clone returns a deep copy of the module
func (m Module) Clone() Module {
	out := m
	out.Videos = append([]Video(nil), m.Videos...)
	if m.Assessment != nil {
		a := *m.Assessment
		out.Assessment = &a
	}
	return out
}

// ModuleIndex returns the position of the module with the given id, or -1.
func (s *Snapshot) ModuleIndex(moduleID uint) int {
	if s == nil {
		return -1
	}
	for i := range s.Modules {
		if s.Modules[i].ID == moduleID {
			return i
		}
	}
	return -1
}

// Locate returns the module and video positions for a pair of ids.
// ok is false when either id is unknown or the video is not in that module.
func (s *Snapshot) Locate(moduleID, videoID uint) (moduleIndex, videoIndex int, ok bool) {
	moduleIndex = s.ModuleIndex(moduleID)
	if moduleIndex < 0 {
		return -1, -1, false
	}
	for j, v := range s.Modules[moduleIndex].Videos {
		if v.ID == videoID {
			return moduleIndex, j, true
		}
	}
	return moduleIndex, -1, false
}

// ModuleByAssessment returns the index of the module owning the assessment, or -1.
func (s *Snapshot) ModuleByAssessment(assessmentID uint) int {
	if s == nil {
		return -1
	}
	for i := range s.Modules {
		if a := s.Modules[i].Assessment; a != nil && a.ID == assessmentID {
			return i
		}
	}
	return -1
}

// completedVideoIDs collects the ids of every completed video in the snapshot.
func (s *Snapshot) completedVideoIDs() map[uint]struct{} {
	done := make(map[uint]struct{})
	if s == nil {
		return done
	}
	for _, m := range s.Modules {
		for _, v := range m.Videos {
			if v.IsCompleted {
				done[v.ID] = struct{}{}
			}
		}
	}
	return done
}

// keepCompletions re-applies completions from done onto the module.
// Completion only moves false to true, so a server view that lags the
// learner never erases a video they already finished.
func keepCompletions(m *Module, done map[uint]struct{}) {
	for j := range m.Videos {
		if _, ok := done[m.Videos[j].ID]; ok {
			m.Videos[j].IsCompleted = true
		}
	}
}
