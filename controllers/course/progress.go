package controllers

import (
	"errors"
	"log"
	"time"

	"learnhub/database"
	"learnhub/messaging"
	"learnhub/metrics"
	"learnhub/middleware"
	courseModels "learnhub/models/course"
	"learnhub/progression"
	courseValidator "learnhub/validators/course"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompleteVideo records a completion. Locked videos are refused; repeats
// succeed without writing.
func CompleteVideo(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}
	courseID := uint(c.Locals("courseID").(int))
	moduleID := uint(c.Locals("moduleID").(int))
	videoID := uint(c.Locals("videoID").(int))

	db := database.Database.Db
	before, err := BuildSnapshot(db, userID, courseID)
	if err != nil {
		return snapshotError(c, err)
	}

	mi, vi, found := before.Locate(moduleID, videoID)
	if !found {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Video not found!", nil)
	}
	if before.Modules[mi].Videos[vi].IsCompleted {
		fresh := before.Modules[mi]
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Video already completed!", progression.CompleteVideoResult{
			Completed: true,
			Module:    &fresh,
		})
	}
	if !progression.IsVideoUnlockable(before, mi, vi) {
		metrics.Rejections.WithLabelValues("complete_video").Inc()
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Video is locked!", nil)
	}

	completion := courseModels.VideoCompletion{
		UserID:   userID,
		CourseID: courseID,
		ModuleID: moduleID,
		VideoID:  videoID,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&completion).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to mark video as completed!", nil)
	}
	updateEnrollmentProgress(db, userID, courseID)

	after, err := BuildSnapshot(db, userID, courseID)
	if err != nil {
		return snapshotError(c, err)
	}
	next := vi + 1
	unlocked := next < len(after.Modules[mi].Videos) &&
		!progression.IsVideoUnlockable(before, mi, next) &&
		progression.IsVideoUnlockable(after, mi, next)

	metrics.VideoCompletions.Inc()
	messaging.PublishEvent(messaging.Event{
		Type:     messaging.EventVideoCompleted,
		UserID:   userID,
		CourseID: courseID,
		ModuleID: moduleID,
		VideoID:  videoID,
	})
	log.Printf("[PROGRESS %s] user %d completed video %d (module %d, unlocked next: %t)",
		c.Get("X-Request-ID"), userID, videoID, moduleID, unlocked)

	fresh := after.Modules[mi]
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Video marked as completed successfully!", progression.CompleteVideoResult{
		Completed: true,
		Unlocked:  unlocked,
		Module:    &fresh,
	})
}

// UpdateVideoPosition stores the resume point of a video
func UpdateVideoPosition(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}
	courseID := uint(c.Locals("courseID").(int))
	moduleID := uint(c.Locals("moduleID").(int))
	videoID := uint(c.Locals("videoID").(int))
	reqData := c.Locals("validatedPosition").(*courseValidator.PositionRequest)

	db := database.Database.Db
	snap, err := BuildSnapshot(db, userID, courseID)
	if err != nil {
		return snapshotError(c, err)
	}
	mi, vi, found := snap.Locate(moduleID, videoID)
	if !found {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Video not found!", nil)
	}
	if !progression.IsVideoUnlockable(snap, mi, vi) {
		metrics.Rejections.WithLabelValues("update_position").Inc()
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Video is locked!", nil)
	}

	position := courseModels.VideoPosition{
		UserID:          userID,
		VideoID:         videoID,
		PositionSeconds: reqData.PositionSeconds,
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"position_seconds", "updated_at"}),
	}).Create(&position).Error
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to save position!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Position saved!", fiber.Map{
		"video_id":         videoID,
		"position_seconds": reqData.PositionSeconds,
	})
}

// UnlockNextModule opens the module after :module_id once the learner has
// earned it.
func UnlockNextModule(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}
	courseID := uint(c.Locals("courseID").(int))
	moduleID := uint(c.Locals("moduleID").(int))

	db := database.Database.Db
	snap, err := BuildSnapshot(db, userID, courseID)
	if err != nil {
		return snapshotError(c, err)
	}
	mi := snap.ModuleIndex(moduleID)
	if mi < 0 {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Module not found!", nil)
	}
	if mi+1 >= len(snap.Modules) {
		return middleware.JsonResponse(c, fiber.StatusOK, true, "This is the last module!", fiber.Map{"unlocked": false})
	}
	next := snap.Modules[mi+1]
	if !next.IsLocked {
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Next module already unlocked!", fiber.Map{
			"unlocked":  true,
			"module_id": next.ID,
		})
	}
	if snap.Modules[mi].IsLocked || !progression.IsNextModuleUnlockable(snap, mi) {
		metrics.Rejections.WithLabelValues("unlock_next_module").Inc()
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Complete this module first!", nil)
	}

	trigger := "COMPLETION"
	if snap.Modules[mi].Assessment != nil {
		trigger = "ASSESSMENT"
	}
	created, err := openModule(db, userID, courseID, next.ID, trigger)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to unlock module!", nil)
	}
	if created {
		announceUnlock(userID, courseID, next.ID, trigger)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Next module unlocked!", fiber.Map{
		"unlocked":  true,
		"module_id": next.ID,
	})
}

// openModule records a module unlock once. created is false when the
// learner had already opened it.
func openModule(db *gorm.DB, userID, courseID, moduleID uint, trigger string) (created bool, err error) {
	unlock := courseModels.ModuleUnlock{
		UserID:   userID,
		CourseID: courseID,
		ModuleID: moduleID,
		Trigger:  trigger,
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&unlock)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// announceUnlock runs after the unlock is committed
func announceUnlock(userID, courseID, moduleID uint, trigger string) {
	metrics.ModuleUnlocks.WithLabelValues(trigger).Inc()
	messaging.PublishEvent(messaging.Event{
		Type:     messaging.EventModuleUnlocked,
		UserID:   userID,
		CourseID: courseID,
		ModuleID: moduleID,
	})
}

// GetUserProgress gets the user's progress in a course
func GetUserProgress(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}
	courseID := uint(c.Locals("courseID").(int))

	snap, err := BuildSnapshot(database.Database.Db, userID, courseID)
	if err != nil {
		return snapshotError(c, err)
	}

	type ModuleProgress struct {
		ModuleID        uint    `json:"module_id"`
		ModuleName      string  `json:"module_name"`
		IsLocked        bool    `json:"is_locked"`
		TotalVideos     int     `json:"total_videos"`
		CompletedVideos int     `json:"completed_videos"`
		Progress        float64 `json:"progress"`
		AssessmentReady bool    `json:"assessment_available"`
		AssessmentPass  bool    `json:"assessment_passed"`
	}

	moduleProgress := make([]ModuleProgress, len(snap.Modules))
	for i, m := range snap.Modules {
		done := 0
		for _, v := range m.Videos {
			if v.IsCompleted {
				done++
			}
		}
		progress := float64(0)
		if len(m.Videos) > 0 {
			progress = float64(done) / float64(len(m.Videos)) * 100
		}
		moduleProgress[i] = ModuleProgress{
			ModuleID:        m.ID,
			ModuleName:      m.Title,
			IsLocked:        m.IsLocked,
			TotalVideos:     len(m.Videos),
			CompletedVideos: done,
			Progress:        progress,
			AssessmentReady: m.Assessment != nil && !m.IsLocked && progression.IsAssessmentAvailable(&snap.Modules[i]),
			AssessmentPass:  m.Assessment != nil && m.Assessment.Passed,
		}
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Progress fetched successfully!", fiber.Map{
		"enrollment":      c.Locals("enrollment"),
		"module_progress": moduleProgress,
	})
}

// updateEnrollmentProgress updates the enrollment progress after a completion
func updateEnrollmentProgress(db *gorm.DB, userID, courseID uint) {
	var totalVideos int64
	var completedVideos int64

	db.Model(&courseModels.Video{}).Where("course_id = ? AND is_deleted = ?", courseID, false).Count(&totalVideos)
	db.Model(&courseModels.VideoCompletion{}).Where("user_id = ? AND course_id = ?", userID, courseID).Count(&completedVideos)

	var enrollment courseModels.Enrollment
	if err := db.Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, courseID, false).First(&enrollment).Error; err != nil {
		return
	}

	enrollment.CompletedVideos = int(completedVideos)
	enrollment.TotalVideos = int(totalVideos)
	if totalVideos > 0 {
		enrollment.Progress = float64(completedVideos) / float64(totalVideos) * 100
	}

	if enrollment.Progress >= 100 {
		enrollment.Status = "COMPLETED"
		if enrollment.CompletedAt == nil {
			now := time.Now()
			enrollment.CompletedAt = &now
		}
	} else if enrollment.Progress > 0 {
		enrollment.Status = "IN_PROGRESS"
	}

	if err := db.Save(&enrollment).Error; err != nil {
		log.Printf("[PROGRESS] failed to update enrollment %d: %v", enrollment.ID, err)
	}
}

func snapshotError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found or not published!", nil)
	}
	log.Printf("[PROGRESS %s] snapshot failed: %v", c.Get("X-Request-ID"), err)
	return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to build course snapshot!", nil)
}
