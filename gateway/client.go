// Package gateway talks to the progression backend over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"learnhub/progression"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// envelope is the {status, message, data} body every endpoint answers with
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client implements progression.Gateway against the learnhub API.
type Client struct {
	http *resty.Client
}

var _ progression.Gateway = (*Client)(nil)

// NewClient returns a client for the API at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: httpClient}
}

// do sends one request and decodes the envelope's data into out. 4xx
// answers other than 408 come back as *progression.RejectedError; every
// other failure is transient.
func (c *Client) do(ctx context.Context, learner progression.Learner, op, method, path string, body, out interface{}) error {
	requestID := uuid.NewString()
	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID).
		SetAuthToken(learner.Token)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(resp.Body(), &env)
	status := resp.StatusCode()

	if status >= 400 && status < 500 && status != http.StatusRequestTimeout {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(status)
		}
		log.Printf("[GATEWAY %s] %s rejected with %d: %s", requestID, op, status, msg)
		return &progression.RejectedError{Op: op, StatusCode: status, Message: msg}
	}
	if status >= 300 {
		return fmt.Errorf("%s: server returned %d", op, status)
	}
	if decodeErr != nil {
		return fmt.Errorf("%s: decode response: %w", op, decodeErr)
	}
	if !env.Status {
		return fmt.Errorf("%s: %s", op, env.Message)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", op, err)
		}
	}
	return nil
}

func (c *Client) FetchCourseSnapshot(ctx context.Context, learner progression.Learner, courseID uint) (*progression.Snapshot, error) {
	var snap progression.Snapshot
	path := fmt.Sprintf("/course/%d/snapshot", courseID)
	if err := c.do(ctx, learner, "snapshot", http.MethodGet, path, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) CompleteVideo(ctx context.Context, learner progression.Learner, courseID, moduleID, videoID uint) (*progression.CompleteVideoResult, error) {
	var res progression.CompleteVideoResult
	path := fmt.Sprintf("/course/%d/module/%d/video/%d/complete", courseID, moduleID, videoID)
	if err := c.do(ctx, learner, "complete_video", http.MethodPost, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) CanAttemptAssessment(ctx context.Context, learner progression.Learner, assessmentID uint) (bool, error) {
	var res struct {
		CanAttempt bool   `json:"can_attempt"`
		Reason     string `json:"reason"`
	}
	path := fmt.Sprintf("/assessment/%d/can-attempt", assessmentID)
	if err := c.do(ctx, learner, "can_attempt", http.MethodGet, path, nil, &res); err != nil {
		return false, err
	}
	return res.CanAttempt, nil
}

func (c *Client) GetAssessmentQuestions(ctx context.Context, learner progression.Learner, assessmentID uint) (*progression.QuestionSet, error) {
	var qs progression.QuestionSet
	path := fmt.Sprintf("/assessment/%d/questions", assessmentID)
	if err := c.do(ctx, learner, "get_questions", http.MethodGet, path, nil, &qs); err != nil {
		return nil, err
	}
	return &qs, nil
}

func (c *Client) SubmitAssessment(ctx context.Context, learner progression.Learner, assessmentID uint, answers map[uint]string) (*progression.AssessmentResult, error) {
	var res progression.AssessmentResult
	path := fmt.Sprintf("/assessment/%d/submit", assessmentID)
	body := map[string]interface{}{"answers": answers}
	if err := c.do(ctx, learner, "submit_assessment", http.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UnlockNextModule(ctx context.Context, learner progression.Learner, courseID, moduleID uint) (bool, error) {
	var res struct {
		Unlocked bool `json:"unlocked"`
	}
	path := fmt.Sprintf("/course/%d/module/%d/unlock-next", courseID, moduleID)
	if err := c.do(ctx, learner, "unlock_next_module", http.MethodPost, path, nil, &res); err != nil {
		return false, err
	}
	return res.Unlocked, nil
}
