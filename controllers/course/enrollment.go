package controllers

import (
	"errors"
	"log"

	"learnhub/database"
	"learnhub/middleware"
	courseModels "learnhub/models/course"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// EnrollInCourse records the purchase of a course. Payment happens
// upstream; an enrollment row is what the snapshot reads as purchased.
func EnrollInCourse(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}
	courseID := c.Locals("courseID").(int)

	db := database.Database.Db

	var course courseModels.Course
	if err := db.Where("id = ? AND is_deleted = ? AND is_published = ?", courseID, false, true).First(&course).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found or not published!", nil)
	}

	var existing courseModels.Enrollment
	err := db.Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, courseID, false).First(&existing).Error
	if err == nil {
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "User already enrolled in this course!", existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to enroll in course!", nil)
	}

	var totalVideos int64
	db.Model(&courseModels.Video{}).Where("course_id = ? AND is_deleted = ?", courseID, false).Count(&totalVideos)

	enrollment := courseModels.Enrollment{
		UserID:      userID,
		CourseID:    uint(courseID),
		Status:      "ENROLLED",
		TotalVideos: int(totalVideos),
	}

	tx := db.Begin()
	if err := tx.Create(&enrollment).Error; err != nil {
		tx.Rollback()
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to enroll in course!", nil)
	}
	if err := tx.Commit().Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to enroll in course!", nil)
	}

	// preview completions made before the purchase count toward progress
	updateEnrollmentProgress(db, userID, uint(courseID))
	log.Printf("[ENROLLMENT] user %d enrolled in course %d", userID, courseID)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrolled in course successfully!", enrollment)
}
