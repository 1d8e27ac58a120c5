package courseRoutes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"learnhub/config"
	"learnhub/database"
	courseModels "learnhub/models/course"
	"learnhub/progression"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eligibility struct {
	CanAttempt    bool   `json:"can_attempt"`
	Reason        string `json:"reason"`
	AttemptsToday int    `json:"attempts_today"`
}

func (f *fixture) canAttempt(t *testing.T, userID uint) eligibility {
	t.Helper()
	status, env := f.call(t, userID, http.MethodGet, f.assessmentPath("can-attempt"), nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var out eligibility
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (f *fixture) submit(t *testing.T, userID uint, first, second string) (int, envelope, *progression.AssessmentResult) {
	t.Helper()
	status, env := f.call(t, userID, http.MethodPost, f.assessmentPath("submit"), f.answers(first, second))
	if status != http.StatusOK {
		return status, env, nil
	}
	var res progression.AssessmentResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return status, env, &res
}

func TestCanAttempt_Rules(t *testing.T) {
	f := newFixture(t)

	got := f.canAttempt(t, visitorUser)
	assert.False(t, got.CanAttempt)
	assert.Equal(t, "Please enroll in this course first!", got.Reason)

	got = f.canAttempt(t, enrolledUser)
	assert.False(t, got.CanAttempt)
	assert.Equal(t, "Complete all videos of this module first!", got.Reason)

	f.completeModule(t, enrolledUser, 0)
	got = f.canAttempt(t, enrolledUser)
	assert.True(t, got.CanAttempt)
	assert.Empty(t, got.Reason)

	status, _ := f.call(t, enrolledUser, http.MethodGet, "/assessment/999/can-attempt", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetQuestions_HidesCorrectLetters(t *testing.T) {
	f := newFixture(t)

	status, _ := f.call(t, enrolledUser, http.MethodGet, f.assessmentPath("questions"), nil)
	assert.Equal(t, http.StatusForbidden, status, "videos not watched yet")

	f.completeModule(t, enrolledUser, 0)
	status, env := f.call(t, enrolledUser, http.MethodGet, f.assessmentPath("questions"), nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.NotContains(t, string(env.Data), "correct_letter")

	var qs progression.QuestionSet
	require.NoError(t, json.Unmarshal(env.Data, &qs))
	assert.Equal(t, f.assessmentID, qs.AssessmentID)
	assert.Equal(t, 120, qs.TimeLimitSeconds)
	require.Len(t, qs.Questions, 2)
	assert.Equal(t, f.questionIDs[0], qs.Questions[0].ID)
	require.Len(t, qs.Questions[0].Options, 4)
	assert.Equal(t, "D", qs.Questions[0].Options[3].Letter)
}

func TestSubmit_FailKeepsNextModuleLocked(t *testing.T) {
	f := newFixture(t)
	f.completeModule(t, enrolledUser, 0)

	status, env, res := f.submit(t, enrolledUser, "a", "")
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.False(t, res.Passed)
	assert.Equal(t, 1, res.ObtainedMarks)
	assert.Equal(t, 2, res.TotalMarks)
	assert.Equal(t, float64(50), res.Percentage)
	assert.False(t, res.NextModuleUnlocked)

	require.Len(t, res.QuestionResults, 2)
	assert.True(t, res.QuestionResults[0].IsCorrect)
	assert.Equal(t, "A", res.QuestionResults[0].Selected)
	assert.Equal(t, "", res.QuestionResults[1].Selected)
	assert.Equal(t, "B", res.QuestionResults[1].CorrectLetter)

	snap := f.snapshot(t, enrolledUser)
	assert.True(t, snap.Modules[1].IsLocked)
	assert.Equal(t, 1, snap.Modules[0].Assessment.Attempts)
	assert.False(t, snap.Modules[0].Assessment.Passed)
}

func TestSubmit_PassUnlocksNextModule(t *testing.T) {
	f := newFixture(t)
	f.completeModule(t, enrolledUser, 0)

	_, _, first := f.submit(t, enrolledUser, "C", "C")
	require.NotNil(t, first)
	assert.False(t, first.Passed)

	status, env, res := f.submit(t, enrolledUser, "A", "B")
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.True(t, res.Passed)
	assert.True(t, res.NextModuleUnlocked)
	assert.Equal(t, f.moduleIDs[1], res.NextModuleID)

	snap := f.snapshot(t, enrolledUser)
	assert.False(t, snap.Modules[1].IsLocked)
	assert.False(t, snap.Modules[1].Videos[0].IsLocked)
	assert.True(t, snap.Modules[1].Videos[1].IsLocked)
	assert.True(t, snap.Modules[0].Assessment.Passed)
	assert.Equal(t, 2, snap.Modules[0].Assessment.ObtainedMarks)
	assert.Equal(t, 2, snap.Modules[0].Assessment.Attempts)

	var attempts []courseModels.AssessmentAttempt
	require.NoError(t, database.Database.Db.Order("id asc").Find(&attempts).Error)
	require.Len(t, attempts, 2)
	assert.Equal(t, 2, attempts[1].AttemptNumber)
	assert.JSONEq(t, fmt.Sprintf(`{"%d":"A","%d":"B"}`, f.questionIDs[0], f.questionIDs[1]), string(attempts[1].Answers))

	var unlock courseModels.ModuleUnlock
	require.NoError(t, database.Database.Db.Where("module_id = ?", f.moduleIDs[1]).First(&unlock).Error)
	assert.Equal(t, "ASSESSMENT", unlock.Trigger)

	got := f.canAttempt(t, enrolledUser)
	assert.False(t, got.CanAttempt)
	assert.Equal(t, "Assessment already passed!", got.Reason)

	status, env, _ = f.submit(t, enrolledUser, "A", "B")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Assessment already passed!", env.Message)
}

func TestSubmit_DailyLimit(t *testing.T) {
	f := newFixture(t)
	config.AppConfig.MaxAttemptsPerDay = 2
	f.completeModule(t, enrolledUser, 0)

	for i := 0; i < 2; i++ {
		status, env, _ := f.submit(t, enrolledUser, "D", "D")
		require.Equal(t, http.StatusOK, status, env.Message)
	}

	status, env, _ := f.submit(t, enrolledUser, "A", "B")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "Daily attempt limit reached!", env.Message)

	got := f.canAttempt(t, enrolledUser)
	assert.False(t, got.CanAttempt)
	assert.Equal(t, 2, got.AttemptsToday)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	f.completeModule(t, enrolledUser, 0)

	status, env := f.call(t, enrolledUser, http.MethodPost, f.assessmentPath("submit"), f.answers("E", "A"))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(env.Data), "Answer must be one of A, B, C or D!")

	status, _ = f.call(t, enrolledUser, http.MethodPost, f.assessmentPath("submit"), map[string]interface{}{})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = f.call(t, visitorUser, http.MethodPost, f.assessmentPath("submit"), f.answers("A", "B"))
	assert.Equal(t, http.StatusForbidden, status)

	var count int64
	database.Database.Db.Model(&courseModels.AssessmentAttempt{}).Count(&count)
	assert.Zero(t, count)
}
