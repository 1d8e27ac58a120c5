package controllers

import (
	"errors"

	"learnhub/database"
	"learnhub/middleware"
	courseModels "learnhub/models/course"
	"learnhub/progression"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// BuildSnapshot assembles the progression view of a course for one
// learner. Lock flags are derived with the same predicates the client
// uses, so both sides agree on what is open.
func BuildSnapshot(db *gorm.DB, userID, courseID uint) (*progression.Snapshot, error) {
	var course courseModels.Course
	if err := db.Where("id = ? AND is_deleted = ? AND is_published = ?", courseID, false, true).First(&course).Error; err != nil {
		return nil, err
	}

	var enrollments int64
	if err := db.Model(&courseModels.Enrollment{}).
		Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, courseID, false).
		Count(&enrollments).Error; err != nil {
		return nil, err
	}

	var modules []courseModels.Module
	if err := db.Where("course_id = ? AND is_deleted = ?", courseID, false).Order("order_index asc, id asc").Find(&modules).Error; err != nil {
		return nil, err
	}
	var videos []courseModels.Video
	if err := db.Where("course_id = ? AND is_deleted = ?", courseID, false).Order("order_index asc, id asc").Find(&videos).Error; err != nil {
		return nil, err
	}

	completed, err := completedVideoSet(db, userID, courseID)
	if err != nil {
		return nil, err
	}

	var positions []courseModels.VideoPosition
	db.Joins("JOIN videos ON videos.id = video_positions.video_id").
		Where("video_positions.user_id = ? AND videos.course_id = ?", userID, courseID).
		Find(&positions)
	positionByVideo := make(map[uint]int, len(positions))
	for _, p := range positions {
		positionByVideo[p.VideoID] = p.PositionSeconds
	}

	var unlocks []courseModels.ModuleUnlock
	db.Where("user_id = ? AND course_id = ?", userID, courseID).Find(&unlocks)
	unlocked := make(map[uint]bool, len(unlocks))
	for _, u := range unlocks {
		unlocked[u.ModuleID] = true
	}

	summaries, err := assessmentSummaries(db, userID, courseID)
	if err != nil {
		return nil, err
	}

	videosByModule := make(map[uint][]courseModels.Video)
	for _, v := range videos {
		videosByModule[v.ModuleID] = append(videosByModule[v.ModuleID], v)
	}

	snap := &progression.Snapshot{
		CourseID:          course.ID,
		IsPurchased:       enrollments > 0,
		FreePreviewVideos: course.FreePreviewVideos,
		Modules:           make([]progression.Module, 0, len(modules)),
	}
	for i, m := range modules {
		pm := progression.Module{
			ID:         m.ID,
			Title:      m.Title,
			IsLocked:   i > 0 && !unlocked[m.ID],
			Assessment: summaries[m.ID],
		}
		for _, v := range videosByModule[m.ID] {
			_, done := completed[v.ID]
			pm.Videos = append(pm.Videos, progression.Video{
				ID:                  v.ID,
				Title:               v.Title,
				DurationSeconds:     v.DurationSeconds,
				IsCompleted:         done,
				IsPreview:           v.IsPreview,
				LastPositionSeconds: positionByVideo[v.ID],
			})
		}
		snap.Modules = append(snap.Modules, pm)
	}

	for mi := range snap.Modules {
		for vi := range snap.Modules[mi].Videos {
			snap.Modules[mi].Videos[vi].IsLocked = !progression.IsVideoUnlockable(snap, mi, vi)
		}
	}
	return snap, nil
}

func completedVideoSet(db *gorm.DB, userID, courseID uint) (map[uint]struct{}, error) {
	var ids []uint
	if err := db.Model(&courseModels.VideoCompletion{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Pluck("video_id", &ids).Error; err != nil {
		return nil, err
	}
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// assessmentSummaries keys a summary of each module's assessment by module id.
// Marks are those of the best attempt.
func assessmentSummaries(db *gorm.DB, userID, courseID uint) (map[uint]*progression.AssessmentSummary, error) {
	var assessments []courseModels.Assessment
	if err := db.Where("course_id = ? AND is_deleted = ?", courseID, false).Find(&assessments).Error; err != nil {
		return nil, err
	}

	out := make(map[uint]*progression.AssessmentSummary, len(assessments))
	for _, a := range assessments {
		sum := &progression.AssessmentSummary{ID: a.ID}

		var total int64
		db.Model(&courseModels.AssessmentQuestion{}).
			Where("assessment_id = ? AND is_deleted = ?", a.ID, false).
			Select("COALESCE(SUM(marks), 0)").Scan(&total)
		sum.TotalMarks = int(total)

		var attempts []courseModels.AssessmentAttempt
		if err := db.Where("user_id = ? AND assessment_id = ?", userID, a.ID).
			Order("obtained_marks desc, id asc").Find(&attempts).Error; err != nil {
			return nil, err
		}
		sum.Attempts = len(attempts)
		for i, at := range attempts {
			if i == 0 {
				sum.ObtainedMarks = at.ObtainedMarks
				sum.TotalMarks = at.TotalMarks
			}
			sum.Passed = sum.Passed || at.Passed
		}
		out[a.ModuleID] = sum
	}
	return out, nil
}

// GetCourseSnapshot returns the learner's progression snapshot
func GetCourseSnapshot(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}
	courseID := c.Locals("courseID").(int)

	snap, err := BuildSnapshot(database.Database.Db, userID, uint(courseID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found or not published!", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to build course snapshot!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course snapshot fetched successfully!", snap)
}
