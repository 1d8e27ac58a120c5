package courseRoutes

import (
	controllers "learnhub/controllers/course"
	"learnhub/middleware"
	validators "learnhub/validators/course"

	"github.com/gofiber/fiber/v2"
)

// SetupCourseRoutes sets up the learner-facing progression routes
func SetupCourseRoutes(app *fiber.App) {
	userGroup := app.Group("/course")

	// Snapshot works before purchase; only the preview is open then
	userGroup.Get("/:course_id/snapshot", middleware.JWTMiddleware, validators.CourseParam(), controllers.GetCourseSnapshot)

	// Enrollment
	userGroup.Post("/:course_id/enroll", middleware.JWTMiddleware, validators.CourseParam(), controllers.EnrollInCourse)

	// Progress tracking
	userGroup.Get("/:course_id/progress", middleware.JWTMiddleware, validators.CourseParam(), middleware.RequireEnrollment(), controllers.GetUserProgress)

	// Video completion and resume point; lock rules decide access
	userGroup.Post("/:course_id/module/:module_id/video/:video_id/complete", middleware.JWTMiddleware, validators.VideoParams(), controllers.CompleteVideo)
	userGroup.Put("/:course_id/module/:module_id/video/:video_id/position", middleware.JWTMiddleware, validators.UpdatePosition(), controllers.UpdateVideoPosition)

	// Module gate
	userGroup.Post("/:course_id/module/:module_id/unlock-next", middleware.JWTMiddleware, validators.ModuleParams(), middleware.RequireEnrollment(), controllers.UnlockNextModule)
}
