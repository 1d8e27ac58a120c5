package course

import "gorm.io/gorm"

// Module represents a section/module within a course
type Module struct {
	gorm.Model
	CourseID    uint   `json:"course_id" gorm:"index;not null"`
	Title       string `json:"title"`
	Description string `json:"description"`
	OrderIndex  int    `json:"order_index" gorm:"default:0"` // Module order in course
	IsDeleted   bool   `gorm:"default:false"`
}

// ModuleUnlock records that a learner opened the gate of a module.
// Module 0 of a course never needs one.
type ModuleUnlock struct {
	gorm.Model
	UserID   uint   `json:"user_id" gorm:"uniqueIndex:idx_module_unlock_user;not null"`
	CourseID uint   `json:"course_id" gorm:"index;not null"`
	ModuleID uint   `json:"module_id" gorm:"uniqueIndex:idx_module_unlock_user;not null"`
	Trigger  string `json:"trigger" gorm:"default:'ASSESSMENT'"` // ASSESSMENT, COMPLETION
}
