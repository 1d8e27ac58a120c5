package controllers

import (
	"testing"

	"learnhub/config"
	courseModels "learnhub/models/course"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func question(id uint, correct string, marks int) courseModels.AssessmentQuestion {
	return courseModels.AssessmentQuestion{Model: gorm.Model{ID: id}, CorrectLetter: correct, Marks: marks}
}

func TestScoreAttempt(t *testing.T) {
	ten := make([]courseModels.AssessmentQuestion, 10)
	for i := range ten {
		ten[i] = question(uint(i+1), "A", 1)
	}
	sevenRight := map[uint]string{}
	for i := 1; i <= 7; i++ {
		sevenRight[uint(i)] = "A"
	}

	tests := []struct {
		name      string
		questions []courseModels.AssessmentQuestion
		answers   map[uint]string
		passPct   float64
		obtained  int
		total     int
		passed    bool
	}{
		{"exactly at threshold passes", ten, sevenRight, 70, 7, 10, true},
		{"just under threshold fails", ten, map[uint]string{1: "A", 2: "A", 3: "A", 4: "A", 5: "A", 6: "A"}, 70, 6, 10, false},
		{"blank answers score zero", ten, map[uint]string{1: "", 2: ""}, 70, 0, 10, false},
		{"weighted marks", []courseModels.AssessmentQuestion{question(1, "B", 3), question(2, "C", 1)}, map[uint]string{1: "B", 2: "D"}, 70, 3, 4, true},
		{"no questions never passes", nil, map[uint]string{}, 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := scoreAttempt(tt.questions, tt.answers, tt.passPct)
			assert.Equal(t, tt.obtained, res.ObtainedMarks)
			assert.Equal(t, tt.total, res.TotalMarks)
			assert.Equal(t, tt.passed, res.Passed)
			assert.Len(t, res.QuestionResults, len(tt.questions))
		})
	}
}

func TestScoreAttempt_PerQuestionResults(t *testing.T) {
	res := scoreAttempt([]courseModels.AssessmentQuestion{question(4, "A", 1), question(5, "B", 1)}, map[uint]string{4: "C"}, 70)

	assert.Equal(t, uint(4), res.QuestionResults[0].QuestionID)
	assert.Equal(t, "C", res.QuestionResults[0].Selected)
	assert.Equal(t, "A", res.QuestionResults[0].CorrectLetter)
	assert.False(t, res.QuestionResults[0].IsCorrect)
	assert.Equal(t, "", res.QuestionResults[1].Selected)
	assert.Zero(t, res.Percentage)
}

func TestPassPercentage(t *testing.T) {
	config.AppConfig = &config.Config{PassPercentage: 70}

	assert.Equal(t, float64(70), passPercentage(courseModels.Assessment{}))
	assert.Equal(t, float64(85), passPercentage(courseModels.Assessment{PassPercentage: 85}))
}
