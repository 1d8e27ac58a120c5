package courseRoutes

import (
	controllers "learnhub/controllers/course"
	"learnhub/middleware"
	validators "learnhub/validators/course"

	"github.com/gofiber/fiber/v2"
)

// SetupAssessmentRoutes sets up the module assessment routes
func SetupAssessmentRoutes(app *fiber.App) {
	assessmentGroup := app.Group("/assessment")

	assessmentGroup.Get("/:assessment_id/can-attempt", middleware.JWTMiddleware, validators.AssessmentParam(), controllers.CanAttemptAssessment)
	assessmentGroup.Get("/:assessment_id/questions", middleware.JWTMiddleware, validators.AssessmentParam(), controllers.GetAssessmentQuestions)
	assessmentGroup.Post("/:assessment_id/submit", middleware.JWTMiddleware, validators.SubmitAssessment(), controllers.SubmitAssessment)
}
