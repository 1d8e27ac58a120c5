package courseRoutes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"learnhub/cache"
	"learnhub/config"
	"learnhub/database"
	"learnhub/messaging"
	"learnhub/middleware"
	courseModels "learnhub/models/course"
	"learnhub/progression"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

const (
	enrolledUser uint = 1
	visitorUser  uint = 2
)

// seeded ids of the test course:
// module 0 has three videos and a two-question assessment,
// module 1 has two videos and no assessment, module 2 has one video.
type fixture struct {
	app          *fiber.App
	courseID     uint
	moduleIDs    []uint
	videoIDs     [][]uint
	assessmentID uint
	questionIDs  []uint // correct answers are A then B
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	config.AppConfig = &config.Config{
		JWTKey:                   "test-secret",
		PassPercentage:           70,
		MaxAttemptsPerDay:        3,
		DefaultFreePreviewVideos: 1,
	}
	cache.Redis = nil
	messaging.Rabbit = nil
	require.NoError(t, database.ConnectSqlite(":memory:"))
	db := database.Database.Db

	f := &fixture{}
	course := courseModels.Course{Title: "Go", FreePreviewVideos: 1, IsPublished: true}
	require.NoError(t, db.Create(&course).Error)
	f.courseID = course.ID

	for i, n := range []int{3, 2, 1} {
		m := courseModels.Module{CourseID: course.ID, Title: fmt.Sprintf("Module %d", i), OrderIndex: i}
		require.NoError(t, db.Create(&m).Error)
		f.moduleIDs = append(f.moduleIDs, m.ID)

		var ids []uint
		for j := 0; j < n; j++ {
			v := courseModels.Video{CourseID: course.ID, ModuleID: m.ID, Title: fmt.Sprintf("Video %d.%d", i, j), OrderIndex: j}
			require.NoError(t, db.Create(&v).Error)
			ids = append(ids, v.ID)
		}
		f.videoIDs = append(f.videoIDs, ids)
	}

	a := courseModels.Assessment{CourseID: course.ID, ModuleID: f.moduleIDs[0], Title: "Quiz", TimeLimitSeconds: 120}
	require.NoError(t, db.Create(&a).Error)
	f.assessmentID = a.ID
	for k, correct := range []string{"A", "B"} {
		q := courseModels.AssessmentQuestion{
			AssessmentID:  a.ID,
			Text:          fmt.Sprintf("Question %d", k),
			OptionA:       "a",
			OptionB:       "b",
			OptionC:       "c",
			OptionD:       "d",
			CorrectLetter: correct,
			Marks:         1,
			OrderIndex:    k,
		}
		require.NoError(t, db.Create(&q).Error)
		f.questionIDs = append(f.questionIDs, q.ID)
	}

	require.NoError(t, db.Create(&courseModels.Enrollment{UserID: enrolledUser, CourseID: course.ID, Status: "ENROLLED", TotalVideos: 6}).Error)

	f.app = fiber.New()
	SetupCourseRoutes(f.app)
	SetupAssessmentRoutes(f.app)
	return f
}

// call sends a request as userID (0 for anonymous) and decodes the envelope
func (f *fixture) call(t *testing.T, userID uint, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := middleware.GenerateJWT(userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func (f *fixture) snapshot(t *testing.T, userID uint) *progression.Snapshot {
	t.Helper()
	status, env := f.call(t, userID, http.MethodGet, fmt.Sprintf("/course/%d/snapshot", f.courseID), nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var snap progression.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	return &snap
}

func (f *fixture) completePath(mi, vi int) string {
	return fmt.Sprintf("/course/%d/module/%d/video/%d/complete", f.courseID, f.moduleIDs[mi], f.videoIDs[mi][vi])
}

func (f *fixture) complete(t *testing.T, userID uint, mi, vi int) progression.CompleteVideoResult {
	t.Helper()
	status, env := f.call(t, userID, http.MethodPost, f.completePath(mi, vi), nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var res progression.CompleteVideoResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res
}

func (f *fixture) completeModule(t *testing.T, userID uint, mi int) {
	t.Helper()
	for vi := range f.videoIDs[mi] {
		f.complete(t, userID, mi, vi)
	}
}

func (f *fixture) assessmentPath(action string) string {
	return fmt.Sprintf("/assessment/%d/%s", f.assessmentID, action)
}

func (f *fixture) answers(first, second string) map[string]interface{} {
	return map[string]interface{}{
		"answers": map[string]string{
			fmt.Sprint(f.questionIDs[0]): first,
			fmt.Sprint(f.questionIDs[1]): second,
		},
	}
}
