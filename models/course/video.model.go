package course

import "gorm.io/gorm"

// Video is one lesson of a module
type Video struct {
	gorm.Model
	CourseID        uint   `json:"course_id" gorm:"index;not null"`
	ModuleID        uint   `json:"module_id" gorm:"index;not null"`
	Title           string `json:"title"`
	VideoURL        string `json:"video_url"`
	DurationSeconds int    `json:"duration_seconds" gorm:"default:0"`
	OrderIndex      int    `json:"order_index" gorm:"default:0"` // Order within module
	IsPreview       bool   `json:"is_preview" gorm:"default:false"`
	IsDeleted       bool   `gorm:"default:false"`
}

// VideoCompletion tracks a learner's completion of a video
type VideoCompletion struct {
	gorm.Model
	UserID   uint `json:"user_id" gorm:"uniqueIndex:idx_video_completion_user;not null"`
	CourseID uint `json:"course_id" gorm:"index;not null"`
	ModuleID uint `json:"module_id" gorm:"index;not null"`
	VideoID  uint `json:"video_id" gorm:"uniqueIndex:idx_video_completion_user;not null"`
}

// VideoPosition is the resume point of a video for a learner
type VideoPosition struct {
	gorm.Model
	UserID          uint `json:"user_id" gorm:"uniqueIndex:idx_video_position_user;not null"`
	VideoID         uint `json:"video_id" gorm:"uniqueIndex:idx_video_position_user;not null"`
	PositionSeconds int  `json:"position_seconds" gorm:"default:0"`
}
