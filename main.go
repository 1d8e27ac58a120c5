package main

import (
	"log"

	"learnhub/cache"
	"learnhub/config"
	"learnhub/database"
	"learnhub/messaging"
	"learnhub/metrics"
	"learnhub/middleware"
	courseRoutes "learnhub/routers/courseRoutes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	config.LoadConfig()
	database.ConnectDb()

	// Redis and RabbitMQ are optional; without them questions are read
	// from the database and events are skipped.
	if err := cache.Connect(config.AppConfig); err != nil {
		log.Printf("Redis unavailable, question cache disabled: %v", err)
	}
	defer cache.Redis.Close()

	if err := messaging.Connect(config.AppConfig.RabbitMQURL); err != nil {
		log.Printf("RabbitMQ unavailable, progression events disabled: %v", err)
	}
	defer messaging.Rabbit.Close()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",
		AllowHeaders: "Content-Type,Authorization,X-Request-ID",
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${reqHeader:X-Request-ID} ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return middleware.JsonResponse(c, fiber.StatusOK, true, "OK", nil)
	})
	app.Get("/metrics", metrics.Handler())

	courseRoutes.SetupCourseRoutes(app)
	courseRoutes.SetupAssessmentRoutes(app)

	log.Printf("Server is running on port %s", config.AppConfig.Port)
	log.Fatal(app.Listen(":" + config.AppConfig.Port))
}
