package courseValidator

import (
	"errors"
	"strings"

	"learnhub/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// PositionRequest is the body of a resume-point update
type PositionRequest struct {
	PositionSeconds int `json:"position_seconds" validate:"gte=0,lte=86400"`
}

// SubmitRequest is the body of an assessment submission. Unanswered
// questions are sent as empty strings.
type SubmitRequest struct {
	Answers map[uint]string `json:"answers" validate:"required,dive,omitempty,oneof=A B C D"`
}

// UpdatePosition validates the video route and the position body
func UpdatePosition() fiber.Handler {
	params := VideoParams()
	return func(c *fiber.Ctx) error {
		reqData := new(PositionRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if errs := structErrors(reqData); len(errs) > 0 {
			return middleware.ValidationErrorResponse(c, errs)
		}
		c.Locals("validatedPosition", reqData)
		return params(c)
	}
}

// SubmitAssessment validates the assessment route and the answers body
func SubmitAssessment() fiber.Handler {
	param := AssessmentParam()
	return func(c *fiber.Ctx) error {
		reqData := new(SubmitRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		for id, letter := range reqData.Answers {
			reqData.Answers[id] = strings.ToUpper(strings.TrimSpace(letter))
		}
		if errs := structErrors(reqData); len(errs) > 0 {
			return middleware.ValidationErrorResponse(c, errs)
		}
		c.Locals("validatedSubmission", reqData)
		return param(c)
	}
}

// structErrors maps validator failures to the field -> message shape of
// ValidationErrorResponse.
func structErrors(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	errs := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs["body"] = err.Error()
		return errs
	}
	for _, fe := range verrs {
		field := jsonField(fe.Namespace())
		switch fe.Tag() {
		case "required":
			errs[field] = "Field is required!"
		case "oneof":
			errs[field] = "Answer must be one of A, B, C or D!"
		case "gte", "lte":
			errs[field] = "Value is out of range!"
		default:
			errs[field] = "Invalid value!"
		}
	}
	return errs
}

// jsonField turns "SubmitRequest.Answers[12]" into "answers[12]"
func jsonField(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	switch {
	case strings.HasPrefix(ns, "Answers"):
		return "answers" + strings.TrimPrefix(ns, "Answers")
	case ns == "PositionSeconds":
		return "position_seconds"
	}
	return strings.ToLower(ns)
}
