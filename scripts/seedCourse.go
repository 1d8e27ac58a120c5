package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"learnhub/config"
	"learnhub/database"
	"learnhub/middleware"
	courseModels "learnhub/models/course"

	"gorm.io/gorm"
)

type seedQuestion struct {
	text    string
	options [4]string
	correct string
}

var seedModules = []struct {
	title  string
	videos []string
	quiz   []seedQuestion
}{
	{
		title:  "Getting Started",
		videos: []string{"Welcome", "Installing the toolchain", "Your first program", "Packages and modules"},
		quiz: []seedQuestion{
			{"Which command initialises a module?", [4]string{"go mod init", "go new", "go start", "go module"}, "A"},
			{"What is the entry point of a program?", [4]string{"init()", "start()", "main()", "run()"}, "C"},
			{"Which file lists a module's dependencies?", [4]string{"deps.json", "go.mod", "package.yaml", "mod.lock"}, "B"},
			{"Exported names start with", [4]string{"an underscore", "a digit", "a lowercase letter", "an uppercase letter"}, "D"},
		},
	},
	{
		title:  "Concurrency",
		videos: []string{"Goroutines", "Channels", "Select", "Mutexes"},
	},
}

func main() {
	config.LoadConfig()
	database.ConnectDb()
	db := database.Database.Db

	userID := uint(1)
	if v := os.Getenv("SEED_USER_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			log.Fatalf("Invalid SEED_USER_ID %q: %v", v, err)
		}
		userID = uint(id)
	}

	var course courseModels.Course
	err := db.Transaction(func(tx *gorm.DB) error {
		course = courseModels.Course{
			Title:             "Go Fundamentals",
			Description:       "A short demo course",
			Author:            "learnhub",
			FreePreviewVideos: config.AppConfig.DefaultFreePreviewVideos,
			IsPublished:       true,
		}
		if err := tx.Create(&course).Error; err != nil {
			return err
		}

		total := 0
		for i, sm := range seedModules {
			module := courseModels.Module{CourseID: course.ID, Title: sm.title, OrderIndex: i}
			if err := tx.Create(&module).Error; err != nil {
				return err
			}

			for j, title := range sm.videos {
				video := courseModels.Video{
					CourseID:        course.ID,
					ModuleID:        module.ID,
					Title:           title,
					VideoURL:        fmt.Sprintf("https://videos.example.com/%d/%d.mp4", module.ID, j),
					DurationSeconds: 300 + 60*j,
					OrderIndex:      j,
					IsPreview:       i == 0 && j == 0,
				}
				if err := tx.Create(&video).Error; err != nil {
					return err
				}
				total++
			}

			if len(sm.quiz) == 0 {
				continue
			}
			assessment := courseModels.Assessment{
				CourseID:         course.ID,
				ModuleID:         module.ID,
				Title:            sm.title + " Quiz",
				TimeLimitSeconds: 300,
			}
			if err := tx.Create(&assessment).Error; err != nil {
				return err
			}
			for k, q := range sm.quiz {
				question := courseModels.AssessmentQuestion{
					AssessmentID:  assessment.ID,
					Text:          q.text,
					OptionA:       q.options[0],
					OptionB:       q.options[1],
					OptionC:       q.options[2],
					OptionD:       q.options[3],
					CorrectLetter: q.correct,
					Marks:         1,
					OrderIndex:    k,
				}
				if err := tx.Create(&question).Error; err != nil {
					return err
				}
			}
		}

		enrollment := courseModels.Enrollment{
			UserID:      userID,
			CourseID:    course.ID,
			Status:      "ENROLLED",
			TotalVideos: total,
		}
		return tx.Create(&enrollment).Error
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	token, err := middleware.GenerateJWT(userID, 30*24*time.Hour)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	log.Printf("Seeded course %d and enrolled user %d", course.ID, userID)
	fmt.Printf("learner --course %d --user %d --token %s snapshot\n", course.ID, userID, token)
}
