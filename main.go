package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"stockwatch_backend/config"
	"stockwatch_backend/controllers"
	"stockwatch_backend/models"
	"stockwatch_backend/routes"
	"stockwatch_backend/scheduler"
	"stockwatch_backend/services/alertcheck"
	"stockwatch_backend/services/notify"
	"stockwatch_backend/services/quotes"
	"stockwatch_backend/services/runlog"

	"github.com/gin-gonic/gin"
)

// dbInitialized tracks whether database has been successfully initialized
// This global variable is used for thread-safe access across goroutines to allow
// the /ready health endpoint to dynamically check database status
var dbInitialized bool
var dbInitMutex sync.RWMutex

func main() {
	log.Println("==============================================")
	log.Println("  Stockwatch Alert Backend - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints FIRST so Cloud Run can detect the service is up
	// Database will be initialized in background
	setupHealthEndpoints(router)

	// Create HTTP server with timeouts optimized for Cloud Run
	// Bind to 0.0.0.0 explicitly for container networking
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server IMMEDIATELY so Cloud Run knows we're listening
	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Initialize database and wire the pipeline in background
	var jobScheduler *scheduler.Scheduler
	var ledger *runlog.Ledger
	var endpoints *notify.EndpointRegistry
	var hub *notify.Hub
	go func() {
		// Initialize database connection
		db, err := config.InitDB()
		if err != nil {
			log.Printf("ERROR: Database connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		// Run database migrations
		log.Println("Running database migrations...")
		if err := models.MigrateAlertModels(db); err != nil {
			log.Printf("ERROR: Migration failed: %v", err)
		} else {
			log.Println("Database migrations completed successfully")
		}

		// Push endpoint registry (MongoDB)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		endpoints, err = notify.NewEndpointRegistry(ctx, cfg.MongoURI)
		cancel()
		if err != nil {
			log.Printf("Push endpoint registry unavailable: %v", err)
		}

		// Push transport (FCM)
		var transport notify.Transport
		fcm, err := notify.NewFCMClient(cfg.FCMProjectID, cfg.FCMClientEmail, cfg.FCMPrivateKey)
		if err != nil {
			log.Printf("FCM not configured, push delivery disabled: %v", err)
		} else {
			transport = fcm
		}

		// Trigger-event stream
		hub = notify.NewHub()

		// Run ledger
		ledger, err = runlog.Open("")
		if err != nil {
			log.Printf("Run ledger unavailable: %v", err)
			ledger = nil
		}

		// Wire the pipeline
		var notifier alertcheck.Notifier
		if endpoints != nil && transport != nil {
			notifier = notify.NewDispatcher(
				notify.NewGormSettingsStore(db),
				endpoints,
				transport,
				hub,
			)
		} else {
			log.Println("Notification dispatch disabled (missing endpoint registry or transport)")
		}

		runner := alertcheck.NewRunner(
			alertcheck.NewGormAlertStore(db),
			quotes.NewVendorGateway(),
			notifier,
			cfg.FetchChunkSize,
			cfg.FetchChunkDelay,
		)

		// Mark database as ready
		dbInitMutex.Lock()
		dbInitialized = true
		dbInitMutex.Unlock()

		// Setup API routes
		monitor := controllers.NewMonitorController(runner, ledger, hub)
		routes.SetupRoutes(router, monitor)

		// Optional in-process scheduler; external Cloud Scheduler is the default
		if cfg.EnableInternalScheduler {
			jobScheduler = scheduler.NewScheduler(runner, ledger)
			go jobScheduler.Start()
		}

		log.Println("Application fully initialized with database")
	}()

	// Graceful shutdown
	gracefulShutdown(server, func() {
		if jobScheduler != nil {
			jobScheduler.Stop()
		}
		if hub != nil {
			hub.Shutdown()
		}
		if ledger != nil {
			ledger.Close()
		}
		if endpoints != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			endpoints.Close(ctx)
			cancel()
		}
	})
}

// setupHealthEndpoints sets up health check endpoints for Cloud Run
func setupHealthEndpoints(router *gin.Engine) {
	// Root endpoint
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Stockwatch Alert Backend",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if service is ready to receive traffic
	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		isDBReady := dbInitialized
		dbInitMutex.RUnlock()

		if !isDBReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		// Check database connection
		sqlDB, err := config.DB.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database connection error",
			})
			return
		}

		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	// Startup probe - can be used for initial health check
	router.GET("/startup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "started",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/startup" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests in production
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, stopBackground func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop background components first
	stopBackground()

	// Create context with timeout for shutdown
	// Cloud Run gives 10 seconds for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Close database connection
	if config.DB != nil {
		sqlDB, err := config.DB.DB()
		if err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	log.Println("Server shutdown completed")
}
