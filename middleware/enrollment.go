package middleware

import (
	"errors"

	"learnhub/database"
	courseModels "learnhub/models/course"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RequireEnrollment rejects learners who have not purchased the course in
// c.Locals("courseID"). Run it after the route's validator.
func RequireEnrollment() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userId").(uint)
		if !ok {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
		}
		courseID, ok := c.Locals("courseID").(int)
		if !ok {
			return JsonResponse(c, fiber.StatusBadRequest, false, "Invalid course ID!", nil)
		}

		var enrollment courseModels.Enrollment
		err := database.Database.Db.Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, courseID, false).
			First(&enrollment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return JsonResponse(c, fiber.StatusForbidden, false, "Please enroll in this course first!", nil)
			}
			return JsonResponse(c, fiber.StatusInternalServerError, false, "Server error while checking enrollment!", nil)
		}

		c.Locals("enrollment", &enrollment)
		return c.Next()
	}
}
