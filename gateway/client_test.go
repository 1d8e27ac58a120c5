package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"learnhub/progression"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var learner = progression.Learner{UserID: 7, Token: "secret-token"}

func respond(w http.ResponseWriter, code int, ok bool, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  ok,
		"message": message,
		"data":    data,
	})
}

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 2*time.Second)
}

func TestClient_FetchCourseSnapshot(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/course/3/snapshot", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
		assert.NoError(t, err)

		respond(w, http.StatusOK, true, "Course snapshot fetched successfully!", progression.Snapshot{
			CourseID:          3,
			IsPurchased:       true,
			FreePreviewVideos: 3,
			Modules: []progression.Module{{
				ID:     10,
				Videos: []progression.Video{{ID: 11, IsCompleted: true}, {ID: 12}},
			}},
		})
	})

	snap, err := c.FetchCourseSnapshot(context.Background(), learner, 3)
	require.NoError(t, err)
	assert.True(t, snap.IsPurchased)
	require.Len(t, snap.Modules, 1)
	assert.True(t, snap.Modules[0].Videos[0].IsCompleted)
	assert.Equal(t, uint(12), snap.Modules[0].Videos[1].ID)
}

func TestClient_CompleteVideo(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/course/1/module/2/video/3/complete", r.URL.Path)
		respond(w, http.StatusOK, true, "Video marked as completed successfully!", map[string]interface{}{
			"completed": true,
			"unlocked":  true,
			"module":    map[string]interface{}{"id": 2, "videos": []map[string]interface{}{{"id": 3, "is_completed": true}}},
		})
	})

	res, err := c.CompleteVideo(context.Background(), learner, 1, 2, 3)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.True(t, res.Unlocked)
	require.NotNil(t, res.Module)
	assert.True(t, res.Module.Videos[0].IsCompleted)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		rejected bool
	}{
		{"locked", http.StatusForbidden, true},
		{"not found", http.StatusNotFound, true},
		{"daily limit", http.StatusTooManyRequests, true},
		{"request timeout", http.StatusRequestTimeout, false},
		{"server error", http.StatusInternalServerError, false},
		{"bad gateway", http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				respond(w, tt.code, false, "Video is locked!", nil)
			})

			_, err := c.CompleteVideo(context.Background(), learner, 1, 2, 3)
			require.Error(t, err)
			assert.Equal(t, tt.rejected, progression.IsRejected(err))

			if tt.rejected {
				var rej *progression.RejectedError
				require.ErrorAs(t, err, &rej)
				assert.Equal(t, tt.code, rej.StatusCode)
				assert.Equal(t, "Video is locked!", rej.Message)
				assert.Equal(t, "complete_video", rej.Op)
			}
		})
	}
}

func TestClient_UnreachableServerIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second)
	_, err := c.FetchCourseSnapshot(context.Background(), learner, 1)
	require.Error(t, err)
	assert.False(t, progression.IsRejected(err))
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})

	_, err := c.CanAttemptAssessment(context.Background(), learner, 5)
	var rej *progression.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "Unauthorized", rej.Message)
}

func TestClient_AssessmentCalls(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/assessment/5/can-attempt":
			respond(w, http.StatusOK, true, "Attempt eligibility fetched!", map[string]interface{}{"can_attempt": true})
		case "/assessment/5/questions":
			respond(w, http.StatusOK, true, "Questions fetched successfully!", progression.QuestionSet{
				AssessmentID:     5,
				TimeLimitSeconds: 300,
				Questions:        []progression.Question{{ID: 1, Text: "q", Options: []progression.Option{{Letter: "A", Text: "a"}}}},
			})
		case "/assessment/5/submit":
			var body struct {
				Answers map[uint]string `json:"answers"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[uint]string{1: "A", 2: ""}, body.Answers)
			respond(w, http.StatusOK, true, "Assessment submitted!", progression.AssessmentResult{
				Passed: true, ObtainedMarks: 1, TotalMarks: 1, Percentage: 100, NextModuleUnlocked: true, NextModuleID: 20,
			})
		case "/course/1/module/10/unlock-next":
			respond(w, http.StatusOK, true, "Next module unlocked!", map[string]interface{}{"unlocked": true, "module_id": 20})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	ok, err := c.CanAttemptAssessment(ctx, learner, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	qs, err := c.GetAssessmentQuestions(ctx, learner, 5)
	require.NoError(t, err)
	assert.Equal(t, 300, qs.TimeLimitSeconds)
	assert.Empty(t, qs.Questions[0].CorrectLetter)

	res, err := c.SubmitAssessment(ctx, learner, 5, map[uint]string{1: "A", 2: ""})
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, uint(20), res.NextModuleID)

	unlocked, err := c.UnlockNextModule(ctx, learner, 1, 10)
	require.NoError(t, err)
	assert.True(t, unlocked)
}

func TestClient_FailedEnvelopeOn200(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, false, "maintenance", nil)
	})

	_, err := c.UnlockNextModule(context.Background(), learner, 1, 10)
	require.Error(t, err)
	assert.False(t, progression.IsRejected(err))
	assert.Contains(t, err.Error(), "maintenance")
}
