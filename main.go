package main

import (
	"context"
	"log"
	"os"

	"dealdialer/config"
	"dealdialer/middleware"
	"dealdialer/routes"
	"dealdialer/worker"

	"github.com/gofiber/fiber/v2"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "SERVER: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Initialize and start the analysis retry worker
	analysisWorker := worker.NewAnalysisWorker(config.DB, log.New(os.Stdout, "ANALYSIS: ", log.LstdFlags))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go analysisWorker.Start(ctx)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Setup routes
	routes.SetupRoutes(app, config.DB)

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
