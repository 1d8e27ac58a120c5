package courseValidator

import (
	"strconv"
	"strings"

	"learnhub/middleware"

	"github.com/gofiber/fiber/v2"
)

// paramID reads a positive integer route parameter. ok is false when a
// response has already been written.
func paramID(c *fiber.Ctx, name, label string) (id int, ok bool, err error) {
	raw := strings.TrimSpace(c.Params(name))
	if raw == "" {
		return 0, false, middleware.JsonResponse(c, fiber.StatusBadRequest, false, label+" is required!", nil)
	}
	id, convErr := strconv.Atoi(raw)
	if convErr != nil || id <= 0 {
		return 0, false, middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid "+label+"!", nil)
	}
	return id, true, nil
}

// CourseParam validates :course_id
func CourseParam() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, ok, err := paramID(c, "course_id", "Course ID")
		if !ok {
			return err
		}
		c.Locals("courseID", courseID)
		return c.Next()
	}
}

// ModuleParams validates :course_id and :module_id
func ModuleParams() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, ok, err := paramID(c, "course_id", "Course ID")
		if !ok {
			return err
		}
		moduleID, ok, err := paramID(c, "module_id", "Module ID")
		if !ok {
			return err
		}
		c.Locals("courseID", courseID)
		c.Locals("moduleID", moduleID)
		return c.Next()
	}
}

// VideoParams validates :course_id, :module_id and :video_id
func VideoParams() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, ok, err := paramID(c, "course_id", "Course ID")
		if !ok {
			return err
		}
		moduleID, ok, err := paramID(c, "module_id", "Module ID")
		if !ok {
			return err
		}
		videoID, ok, err := paramID(c, "video_id", "Video ID")
		if !ok {
			return err
		}
		c.Locals("courseID", courseID)
		c.Locals("moduleID", moduleID)
		c.Locals("videoID", videoID)
		return c.Next()
	}
}

// AssessmentParam validates :assessment_id
func AssessmentParam() fiber.Handler {
	return func(c *fiber.Ctx) error {
		assessmentID, ok, err := paramID(c, "assessment_id", "Assessment ID")
		if !ok {
			return err
		}
		c.Locals("assessmentID", assessmentID)
		return c.Next()
	}
}
