package main

import (
	"bytes"
	"testing"

	"learnhub/progression"

	"github.com/stretchr/testify/assert"
)

func TestRenderSnapshot(t *testing.T) {
	snap := &progression.Snapshot{
		CourseID:          1,
		IsPurchased:       true,
		FreePreviewVideos: 1,
		Modules: []progression.Module{
			{
				ID:    10,
				Title: "Basics",
				Videos: []progression.Video{
					{ID: 11, Title: "Intro", IsCompleted: true},
					{ID: 12, Title: "Setup", IsCompleted: true},
				},
				Assessment: &progression.AssessmentSummary{ID: 5, Attempts: 1},
			},
			{
				ID:       20,
				Title:    "Advanced",
				IsLocked: true,
				Videos:   []progression.Video{{ID: 21, Title: "Deep dive", IsLocked: true}},
			},
		},
	}

	var buf bytes.Buffer
	renderSnapshot(&buf, snap, pendingSet([]uint{12}))
	out := buf.String()

	assert.Contains(t, out, "course 1 (purchased)")
	assert.Contains(t, out, `video 11 "Intro" [done]`)
	assert.Contains(t, out, `video 12 "Setup" [done, pending sync]`)
	assert.Contains(t, out, "assessment 5 [available, 1 attempts]")
	assert.Contains(t, out, `module 20 "Advanced" [locked]`)
	assert.Contains(t, out, `video 21 "Deep dive" [locked]`)
}

func TestRenderSnapshot_Nil(t *testing.T) {
	var buf bytes.Buffer
	renderSnapshot(&buf, nil, nil)
	assert.Equal(t, "no snapshot loaded\n", buf.String())
}

func TestParseID(t *testing.T) {
	id, err := parseID("42", "module")
	assert.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"", "0", "-1", "abc"} {
		_, err := parseID(bad, "video")
		assert.Error(t, err, bad)
	}
}
