package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitelens/url-analyzer/internal/analyzer"
	"github.com/sitelens/url-analyzer/internal/api"
	"github.com/sitelens/url-analyzer/internal/db"
	"github.com/sitelens/url-analyzer/internal/middleware"
	"github.com/sitelens/url-analyzer/internal/runner"
	"github.com/sitelens/url-analyzer/internal/service"
)

// Config holds application configuration
type Config struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Workers         int
	QueueSize       int
	ProbeWorkers    int
}

// NewConfig creates a new configuration from environment variables
func NewConfig() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		Port:            port,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Workers:         getEnvAsInt("WORKERS", 5),
		QueueSize:       getEnvAsInt("QUEUE_SIZE", 100),
		ProbeWorkers:    getEnvAsInt("PROBE_CONCURRENCY", 10),
	}
}

// getEnvAsInt returns an integer environment variable value or default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func main() {
	// Initialize configuration
	config := NewConfig()

	// Initialize database
	log.Println("Initializing database...")
	dbConn, err := db.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Println("Database initialized successfully")

	// Initialize analysis runner
	log.Println("Initializing runner service...")
	analyzerCfg := analyzer.DefaultConfig()
	analyzerCfg.ProbeConcurrency = config.ProbeWorkers
	runnerService := runner.NewService(
		service.NewSubmissionStore(dbConn),
		analyzer.New(analyzerCfg),
		&runner.Config{Workers: config.Workers, QueueSize: config.QueueSize},
	)
	if err := runnerService.Start(); err != nil {
		log.Fatalf("Failed to start runner service: %v", err)
	}
	log.Println("Runner service started successfully")

	// Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Add middleware
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   "url-analyzer",
		})
	})

	// Authentication endpoint
	r.POST("/auth/login", api.LoginHandler(dbConn))

	// Protected routes
	authorized := r.Group("/")
	authorized.Use(middleware.JWTRequired())
	{
		authorized.POST("/urls", api.AddURLHandler(dbConn))
		authorized.GET("/urls", api.ListURLsHandler(dbConn))
		authorized.GET("/urls/stats", api.StatsHandler(dbConn))
		authorized.GET("/urls/:id", api.GetURLHandler(dbConn))
		authorized.GET("/urls/:id/analysis", api.GetAnalysisHandler(dbConn))
		authorized.POST("/urls/:id/start", api.StartHandler(dbConn, runnerService))
		authorized.POST("/urls/:id/stop", api.StopHandler(dbConn, runnerService))
		authorized.POST("/urls/reanalyze", api.ReanalyzeHandler(dbConn))
		authorized.DELETE("/urls", api.DeleteHandler(dbConn))
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Create shutdown context
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	// Shutdown server gracefully
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Stop runner service gracefully
	if err := runnerService.Stop(); err != nil {
		log.Printf("Failed to stop runner service: %v", err)
	}

	log.Println("Server exited")
}
