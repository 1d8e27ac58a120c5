package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"learnhub/cache"
	"learnhub/config"
	"learnhub/database"
	"learnhub/messaging"
	"learnhub/metrics"
	"learnhub/middleware"
	courseModels "learnhub/models/course"
	"learnhub/progression"
	courseValidator "learnhub/validators/course"

	"github.com/gofiber/fiber/v2"
	"github.com/jinzhu/now"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const questionCacheTTL = 10 * time.Minute

// attemptCheck is the server's verdict on whether an attempt may start
type attemptCheck struct {
	CanAttempt        bool   `json:"can_attempt"`
	Reason            string `json:"reason,omitempty"`
	AttemptsToday     int64  `json:"attempts_today"`
	MaxAttemptsPerDay int    `json:"max_attempts_per_day"`
}

// assessmentContext loads an assessment and the learner's snapshot of its course
type assessmentContext struct {
	assessment  courseModels.Assessment
	snap        *progression.Snapshot
	moduleIndex int
}

func loadAssessmentContext(db *gorm.DB, userID, assessmentID uint) (*assessmentContext, error) {
	var a courseModels.Assessment
	if err := db.Where("id = ? AND is_deleted = ?", assessmentID, false).First(&a).Error; err != nil {
		return nil, err
	}
	snap, err := BuildSnapshot(db, userID, a.CourseID)
	if err != nil {
		return nil, err
	}
	mi := snap.ModuleByAssessment(a.ID)
	if mi < 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &assessmentContext{assessment: a, snap: snap, moduleIndex: mi}, nil
}

// checkAttempt applies the attempt rules: the module is open and watched,
// the learner has not passed yet, and the daily attempt budget is not spent.
func checkAttempt(db *gorm.DB, userID uint, ac *assessmentContext) attemptCheck {
	maxPerDay := config.AppConfig.MaxAttemptsPerDay
	check := attemptCheck{MaxAttemptsPerDay: maxPerDay}

	db.Model(&courseModels.AssessmentAttempt{}).
		Where("user_id = ? AND assessment_id = ? AND created_at >= ?", userID, ac.assessment.ID, now.BeginningOfDay()).
		Count(&check.AttemptsToday)

	m := &ac.snap.Modules[ac.moduleIndex]
	switch {
	case !ac.snap.IsPurchased:
		check.Reason = "Please enroll in this course first!"
	case m.IsLocked:
		check.Reason = "Module is locked!"
	case !progression.IsAssessmentAvailable(m):
		check.Reason = "Complete all videos of this module first!"
	case m.Assessment != nil && m.Assessment.Passed:
		check.Reason = "Assessment already passed!"
	case maxPerDay > 0 && check.AttemptsToday >= int64(maxPerDay):
		check.Reason = "Daily attempt limit reached!"
	default:
		check.CanAttempt = true
	}
	return check
}

// CanAttemptAssessment reports whether the learner may start an attempt now
func CanAttemptAssessment(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}
	assessmentID := uint(c.Locals("assessmentID").(int))

	db := database.Database.Db
	ac, err := loadAssessmentContext(db, userID, assessmentID)
	if err != nil {
		return assessmentError(c, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Attempt eligibility fetched!", checkAttempt(db, userID, ac))
}

// GetAssessmentQuestions returns the question set without correct letters
func GetAssessmentQuestions(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}
	assessmentID := uint(c.Locals("assessmentID").(int))

	db := database.Database.Db
	ac, err := loadAssessmentContext(db, userID, assessmentID)
	if err != nil {
		return assessmentError(c, err)
	}
	m := &ac.snap.Modules[ac.moduleIndex]
	if !ac.snap.IsPurchased || m.IsLocked || !progression.IsAssessmentAvailable(m) {
		metrics.Rejections.WithLabelValues("get_questions").Inc()
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Assessment is not available yet!", nil)
	}

	qs, err := questionSet(c.Context(), db, ac.assessment)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch questions!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Questions fetched successfully!", qs)
}

// questionSet reads the learner-facing questions, through the cache when one is configured
func questionSet(ctx context.Context, db *gorm.DB, a courseModels.Assessment) (*progression.QuestionSet, error) {
	key := cache.QuestionSetKey(a.ID)
	if raw, err := cache.Redis.Get(ctx, key); err == nil {
		var qs progression.QuestionSet
		if json.Unmarshal([]byte(raw), &qs) == nil {
			return &qs, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Printf("[ASSESSMENT] cache read %s: %v", key, err)
	}

	questions, err := loadQuestions(db, a.ID)
	if err != nil {
		return nil, err
	}
	qs := &progression.QuestionSet{
		AssessmentID:     a.ID,
		TimeLimitSeconds: a.TimeLimitSeconds,
		Questions:        make([]progression.Question, 0, len(questions)),
	}
	for _, q := range questions {
		qs.Questions = append(qs.Questions, progression.Question{
			ID:   q.ID,
			Text: q.Text,
			Options: []progression.Option{
				{Letter: "A", Text: q.OptionA},
				{Letter: "B", Text: q.OptionB},
				{Letter: "C", Text: q.OptionC},
				{Letter: "D", Text: q.OptionD},
			},
		})
	}

	if body, err := json.Marshal(qs); err == nil {
		if err := cache.Redis.Set(ctx, key, body, questionCacheTTL); err != nil {
			log.Printf("[ASSESSMENT] cache write %s: %v", key, err)
		}
	}
	return qs, nil
}

func loadQuestions(db *gorm.DB, assessmentID uint) ([]courseModels.AssessmentQuestion, error) {
	var questions []courseModels.AssessmentQuestion
	err := db.Where("assessment_id = ? AND is_deleted = ?", assessmentID, false).
		Order("order_index asc, id asc").Find(&questions).Error
	return questions, err
}

// SubmitAssessment scores an attempt. A pass opens the next module.
func SubmitAssessment(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}
	assessmentID := uint(c.Locals("assessmentID").(int))
	reqData := c.Locals("validatedSubmission").(*courseValidator.SubmitRequest)

	var result *progression.AssessmentResult
	var refusal *attemptCheck
	var courseID, moduleID uint
	var opened bool

	err := database.Database.Db.Transaction(func(tx *gorm.DB) error {
		ac, err := loadAssessmentContext(tx, userID, assessmentID)
		if err != nil {
			return err
		}
		courseID = ac.assessment.CourseID
		moduleID = ac.snap.Modules[ac.moduleIndex].ID

		check := checkAttempt(tx, userID, ac)
		if !check.CanAttempt {
			refusal = &check
			return nil
		}

		questions, err := loadQuestions(tx, assessmentID)
		if err != nil {
			return err
		}
		result = scoreAttempt(questions, reqData.Answers, passPercentage(ac.assessment))

		var previous int64
		tx.Model(&courseModels.AssessmentAttempt{}).Where("user_id = ? AND assessment_id = ?", userID, assessmentID).Count(&previous)
		answers, err := json.Marshal(reqData.Answers)
		if err != nil {
			return err
		}
		attempt := courseModels.AssessmentAttempt{
			UserID:        userID,
			AssessmentID:  assessmentID,
			Answers:       datatypes.JSON(answers),
			ObtainedMarks: result.ObtainedMarks,
			TotalMarks:    result.TotalMarks,
			Percentage:    result.Percentage,
			Passed:        result.Passed,
			AttemptNumber: int(previous) + 1,
		}
		if err := tx.Create(&attempt).Error; err != nil {
			return err
		}
		if !result.Passed {
			return nil
		}

		after, err := BuildSnapshot(tx, userID, courseID)
		if err != nil {
			return err
		}
		mi := after.ModuleIndex(moduleID)
		if mi < 0 || mi+1 >= len(after.Modules) || !progression.IsNextModuleUnlockable(after, mi) {
			return nil
		}
		next := after.Modules[mi+1]
		if next.IsLocked {
			if opened, err = openModule(tx, userID, courseID, next.ID, "ASSESSMENT"); err != nil {
				return err
			}
		}
		result.NextModuleUnlocked = true
		result.NextModuleID = next.ID
		return nil
	})
	if err != nil {
		return assessmentError(c, err)
	}
	if refusal != nil {
		metrics.Rejections.WithLabelValues("submit_assessment").Inc()
		status := fiber.StatusForbidden
		if refusal.MaxAttemptsPerDay > 0 && refusal.AttemptsToday >= int64(refusal.MaxAttemptsPerDay) {
			status = fiber.StatusTooManyRequests
		}
		return middleware.JsonResponse(c, status, false, refusal.Reason, refusal)
	}

	if opened {
		announceUnlock(userID, courseID, result.NextModuleID, "ASSESSMENT")
	}
	outcome := "failed"
	if result.Passed {
		outcome = "passed"
	}
	metrics.AssessmentSubmissions.WithLabelValues(outcome).Inc()
	passed := result.Passed
	messaging.PublishEvent(messaging.Event{
		Type:         messaging.EventAssessmentSubmitted,
		UserID:       userID,
		CourseID:     courseID,
		ModuleID:     moduleID,
		AssessmentID: assessmentID,
		Passed:       &passed,
		Percentage:   result.Percentage,
	})
	log.Printf("[ASSESSMENT %s] user %d scored %.1f%% on assessment %d (next module unlocked: %t)",
		c.Get("X-Request-ID"), userID, result.Percentage, assessmentID, result.NextModuleUnlocked)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Assessment submitted!", result)
}

// scoreAttempt marks each question. Missing and blank answers score zero.
func scoreAttempt(questions []courseModels.AssessmentQuestion, answers map[uint]string, passPct float64) *progression.AssessmentResult {
	res := &progression.AssessmentResult{
		QuestionResults: make([]progression.QuestionResult, 0, len(questions)),
	}
	for _, q := range questions {
		selected := answers[q.ID]
		correct := selected != "" && selected == q.CorrectLetter
		res.TotalMarks += q.Marks
		if correct {
			res.ObtainedMarks += q.Marks
		}
		res.QuestionResults = append(res.QuestionResults, progression.QuestionResult{
			QuestionID:    q.ID,
			Selected:      selected,
			CorrectLetter: q.CorrectLetter,
			IsCorrect:     correct,
		})
	}
	if res.TotalMarks > 0 {
		res.Percentage = float64(res.ObtainedMarks) / float64(res.TotalMarks) * 100
	}
	// compare without the division so 7/10 against 70 is exact
	res.Passed = res.TotalMarks > 0 && float64(res.ObtainedMarks)*100 >= passPct*float64(res.TotalMarks)
	return res
}

func passPercentage(a courseModels.Assessment) float64 {
	if a.PassPercentage > 0 {
		return a.PassPercentage
	}
	return config.AppConfig.PassPercentage
}

func assessmentError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Assessment not found!", nil)
	}
	log.Printf("[ASSESSMENT %s] %v", c.Get("X-Request-ID"), err)
	return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Something went wrong!", nil)
}
