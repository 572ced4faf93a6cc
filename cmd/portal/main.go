package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/skillgauge/skillgauge/internal/api/http"
	"github.com/skillgauge/skillgauge/internal/assess"
	auth "github.com/skillgauge/skillgauge/internal/auth/middleware"
	"github.com/skillgauge/skillgauge/internal/config"
	"github.com/skillgauge/skillgauge/internal/db"
	"github.com/skillgauge/skillgauge/internal/grading"
	"github.com/skillgauge/skillgauge/internal/rbac"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := assess.NewSQLStore(dbh, cfg.DBDriver)
	svc := assess.NewService(store)
	coord := grading.NewCoordinator(store)

	// Backstop for timed sessions across restarts.
	sweeper := assess.NewSweeper(svc)
	if err := sweeper.Start(cfg.SweepInterval); err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	defer sweeper.Stop()

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, auth.LoginConfig{
		AdminUser:     cfg.AdminUser,
		AdminPassHash: cfg.AdminPassHash,
	}))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, true))

		// Authoring boundary (admin)
		pr.With(rbac.Require("test:create")).
			Post("/tests", api.UploadTestHandler(store))
		pr.With(rbac.Require("test:view")).
			Get("/tests/{testID}", api.GetTestHandler(store))

		// Assignment lifecycle
		pr.With(rbac.Require("assignment:create")).
			Post("/assignments", api.CreateAssignmentHandler(store))
		pr.With(rbac.RequireAny("assignment:view-own", "assignment:view-all")).
			Get("/assignments", api.ListAssignmentsHandler(store))
		pr.With(rbac.RequireAny("assignment:view-own", "assignment:view-all")).
			Get("/assignments/{assignmentID}", api.GetAssignmentHandler(store))

		// Respondent flow
		pr.With(rbac.Require("assignment:take")).
			Post("/assignments/{assignmentID}/open", api.OpenAssignmentHandler(svc, store))
		pr.With(rbac.Require("assignment:take")).
			Post("/assignments/{assignmentID}/responses", api.SaveResponseHandler(svc, store))
		pr.With(rbac.RequireAny("assignment:view-own", "assignment:view-all")).
			Get("/assignments/{assignmentID}/responses", api.ListResponsesHandler(store))
		pr.With(rbac.Require("assignment:take")).
			Post("/assignments/{assignmentID}/submit", api.SubmitAssignmentHandler(svc, store))

		// Score reads (reports, leaderboards) all go through the one engine
		pr.With(rbac.RequireAny("assignment:view-own", "assignment:view-all")).
			Get("/assignments/{assignmentID}/score", api.GetScoreHandler(svc, store))

		// Grading override (admin)
		pr.With(rbac.Require("response:grade")).
			Get("/assignments/{assignmentID}/grading", api.GetGradingQueueHandler(coord))
		pr.With(rbac.Require("response:grade")).
			Post("/responses/{responseID}/grade", api.GradeResponseHandler(coord))

		// Users (admin)
		pr.With(rbac.Require("users:upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
