package routes

import (
	"log"
	"os"

	controller "dealdialer/controllers"
	"dealdialer/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	SetupAuthRoutes(app, db)
	SetupAPIRoutes(app, db)
}

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)
	auth.Get("/google", controller.GoogleOAuth)
	auth.Get("/google/callback", controller.GoogleOAuthCallback)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", controller.GetCurrentBanker)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB) {
	// Initialize controllers with their respective loggers
	callController := controller.NewCallController(db, log.New(os.Stdout, "CALL: ", log.LstdFlags))
	campaignController := controller.NewCampaignController(db, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags))
	companyController := controller.NewCompanyController(db, log.New(os.Stdout, "COMPANY: ", log.LstdFlags))
	actionController := controller.NewActionController(db, log.New(os.Stdout, "ACTION: ", log.LstdFlags))
	meetingController := controller.NewMeetingController(db, log.New(os.Stdout, "MEETING: ", log.LstdFlags))
	dashboardController := controller.NewDashboardController(db, log.New(os.Stdout, "DASHBOARD: ", log.LstdFlags))

	// Voice platform webhook. Unauthenticated: the platform signs
	// nothing we can verify with a banker JWT, correlation happens by
	// external call id.
	app.Post("/webhooks/voice", callController.HandleVoiceWebhook)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Dashboard routes
	dashboard := api.Group("/dashboard")
	dashboard.Get("/stats", dashboardController.GetDashboardStats)
	dashboard.Get("/recent-calls", dashboardController.GetRecentCalls)

	// Campaign routes
	campaign := api.Group("/campaigns")
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Get("/", campaignController.GetCampaigns)
	campaign.Get("/:id", campaignController.GetCampaign)
	campaign.Put("/:id", campaignController.UpdateCampaign)
	campaign.Delete("/:id", campaignController.DeleteCampaign)
	campaign.Post("/:id/sync", campaignController.SyncCompanies)

	// Company routes
	company := api.Group("/companies")
	company.Post("/", companyController.CreateCompany)
	company.Get("/", companyController.GetCompanies)
	company.Get("/:id", companyController.GetCompany)
	company.Put("/:id", companyController.UpdateCompany)

	// Call routes. Starting a call dials out through the voice
	// platform, so it carries a per-banker rate limit.
	call := api.Group("/calls")
	call.Post("/", middleware.CallRateLimiter(), callController.StartPhoneCall)
	call.Post("/web", middleware.CallRateLimiter(), callController.StartWebCall)
	call.Post("/:id/events", callController.HandleCallEvents)
	call.Post("/:id/end", callController.EndWebCall)
	call.Get("/", callController.GetCalls)
	call.Get("/:id", callController.GetCall)

	// Action routes
	action := api.Group("/actions")
	action.Post("/", actionController.CreateAction)
	action.Get("/", actionController.GetActions)
	action.Put("/:id", actionController.UpdateAction)
	action.Post("/:id/complete", actionController.CompleteAction)
	action.Delete("/:id", actionController.DeleteAction)

	// Meeting routes
	meeting := api.Group("/meetings")
	meeting.Get("/slots", meetingController.GetSlots)
	meeting.Post("/", meetingController.CreateMeeting)
	meeting.Get("/", meetingController.GetMeetings)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
