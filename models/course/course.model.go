package course

import "gorm.io/gorm"

// Course represents a learning course
type Course struct {
	gorm.Model
	Title             string `json:"title"`
	Description       string `json:"description"`
	Author            string `json:"author"`
	FreePreviewVideos int    `json:"free_preview_videos" gorm:"default:3"` // leading videos of module 0 open on purchase
	ThumbnailURL      string `json:"thumbnail_url"`
	IsPublished       bool   `json:"is_published" gorm:"default:false"`
	IsDeleted         bool   `gorm:"default:false"`
}
