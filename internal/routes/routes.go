package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noberman/PTSessionTrackerBack/internal/config"
	"github.com/noberman/PTSessionTrackerBack/internal/handlers"
	"github.com/noberman/PTSessionTrackerBack/internal/middleware"
	"github.com/noberman/PTSessionTrackerBack/internal/repository"
	"github.com/noberman/PTSessionTrackerBack/internal/services"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	clientRepo := repository.NewClientRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)

	packageService := services.NewPackageService(db, packageRepo, paymentRepo, sessionRepo, clientRepo)
	sessionService := services.NewSessionService(db, sessionRepo, packageRepo, paymentRepo)
	commissionService := services.NewCommissionService(sessionRepo, commissionRepo, userRepo)
	profileService := services.NewCommissionProfileService(db, commissionRepo, userRepo)
	migrationService := services.NewCommissionMigrationService(db, orgRepo, commissionRepo, userRepo, sessionRepo)

	packageHandler := handlers.NewPackageHandler(packageService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	commissionHandler := handlers.NewCommissionHandler(commissionService, profileService, migrationService)

	api := app.Group("/api")
	v1 := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret, userRepo))

	packages := v1.Group("/packages")
	packages.Post("", packageHandler.CreatePackage)
	packages.Get("/:id", packageHandler.GetDetail)
	packages.Post("/:id/payments", packageHandler.AddPayment)
	packages.Delete("/:id/payments/:paymentID", packageHandler.DeletePayment)

	clients := v1.Group("/clients")
	clients.Post("/:id/deactivate", packageHandler.DeactivateClient)
	clients.Post("/:id/reactivate", packageHandler.ReactivateClient)

	sessions := v1.Group("/sessions")
	sessions.Post("", sessionHandler.LogSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Post("/:id/validate", sessionHandler.ValidateSession)
	sessions.Post("/:id/cancel", sessionHandler.CancelSession)

	commissions := v1.Group("/commissions")
	commissions.Get("/report", commissionHandler.OrganizationReport)
	commissions.Get("/trainers/:id", commissionHandler.TrainerReport)
	commissions.Post("/profiles", commissionHandler.CreateProfile)
	commissions.Get("/profiles/:id", commissionHandler.GetProfile)
	commissions.Post("/trainers/:id/profile", commissionHandler.AssignProfile)
	commissions.Post("/migrate-v2", commissionHandler.MigrateOrganization)
	commissions.Get("/migrate-v2/verify", commissionHandler.VerifyMigration)
}
