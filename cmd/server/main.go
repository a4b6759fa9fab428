package main

import (
	"context"
	"log"
	"net/http"

	"formpilot/internal/automation"
	"formpilot/internal/config"
	"formpilot/internal/database"
	"formpilot/internal/handlers"
	"formpilot/internal/middleware"
	"formpilot/internal/models"
	"formpilot/internal/planner"
	"formpilot/internal/store"
	"formpilot/internal/worker"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")

	cfg := config.Load()

	db, err := database.New()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Printf("Warning: failed to run migrations: %v", err)
	}

	st := store.New(db)

	// Any job left PROCESSING is an orphan from a previous run. Jobs
	// waiting for user input keep waiting across restarts.
	if n, err := st.FailAllProcessing(context.Background()); err != nil {
		log.Printf("Warning: startup recovery failed: %v", err)
	} else if n > 0 {
		log.Printf("Startup recovery: marked %d interrupted job(s) as FAILED", n)
	}

	plan := planner.New(cfg.PlannerBaseURL, cfg.PlannerAPIKey, cfg.PlannerModel, cfg.PlannerPingModel)
	session := automation.New(plan, cfg)

	w := worker.New(st, map[models.JobType]worker.Executor{
		models.TypeFormSubmission: session,
		models.TypeScraper:        worker.ScraperExecutor{},
	}, cfg)

	hub := handlers.NewHub()
	hub.Start()
	w.Notify = hub.BroadcastJobUpdate

	w.Start()
	defer w.Stop()

	router := mux.NewRouter()
	router.Use(middleware.CORS)

	jobsHandler := handlers.NewJobsHandler(st, hub, cfg.UploadDir)
	router.HandleFunc("/api/jobs", jobsHandler.ListJobs).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/jobs", jobsHandler.CreateJob).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/jobs/{id}", jobsHandler.GetJob).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/jobs/{id}", jobsHandler.DeleteJob).Methods("DELETE", "OPTIONS")
	router.HandleFunc("/api/jobs/{id}/resume", jobsHandler.ResumeJob).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/jobs/{id}/pause", jobsHandler.PauseJob).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/jobs/{id}/continue", jobsHandler.ContinueJob).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/jobs/{id}/cancel", jobsHandler.CancelJob).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/jobs/{id}/retry", jobsHandler.RetryJob).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/jobs/{id}/logs", jobsHandler.GetJobLogs).Methods("GET", "OPTIONS")

	profilesHandler := handlers.NewProfilesHandler(st)
	router.HandleFunc("/api/profiles", profilesHandler.ListProfiles).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/profiles", profilesHandler.CreateProfile).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/profiles/{id}", profilesHandler.UpdateProfile).Methods("PUT", "OPTIONS")

	wsHandler := handlers.NewWSHandler(hub)
	router.HandleFunc("/api/ws", wsHandler.HandleWebSocket).Methods("GET")

	log.Printf("Server starting on port %s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
