package course

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Assessment is the quiz that gates the module after its own
type Assessment struct {
	gorm.Model
	CourseID         uint    `json:"course_id" gorm:"index;not null"`
	ModuleID         uint    `json:"module_id" gorm:"uniqueIndex;not null"`
	Title            string  `json:"title"`
	TimeLimitSeconds int     `json:"time_limit_seconds" gorm:"default:0"` // 0 means untimed
	PassPercentage   float64 `json:"pass_percentage" gorm:"default:0"`    // 0 falls back to PASS_PERCENTAGE
	IsDeleted        bool    `gorm:"default:false"`
}

// AssessmentQuestion is a single choice question with options A to D
type AssessmentQuestion struct {
	gorm.Model
	AssessmentID  uint   `json:"assessment_id" gorm:"index;not null"`
	Text          string `json:"text" gorm:"type:text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectLetter string `json:"-" gorm:"size:1;not null"`
	Marks         int    `json:"marks" gorm:"default:1"`
	OrderIndex    int    `json:"order_index" gorm:"default:0"`
	IsDeleted     bool   `gorm:"default:false"`
}

// AssessmentAttempt is one scored submission
type AssessmentAttempt struct {
	gorm.Model
	UserID        uint           `json:"user_id" gorm:"index;not null"`
	AssessmentID  uint           `json:"assessment_id" gorm:"index;not null"`
	Answers       datatypes.JSON `json:"answers"` // question id -> letter
	ObtainedMarks int            `json:"obtained_marks"`
	TotalMarks    int            `json:"total_marks"`
	Percentage    float64        `json:"percentage"`
	Passed        bool           `json:"passed" gorm:"default:false"`
	AttemptNumber int            `json:"attempt_number" gorm:"default:1"`
}
