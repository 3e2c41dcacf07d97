/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Create orchestrator and API handler
  4. Configure HTTP router and period scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: payroll.db)
                   Use ":memory:" for an in-memory database
  -workers         Concurrent employees per calculation (default: 4)
  -formula-timeout Per-formula evaluation timeout (default: 2s)
  -monthly-hours   Standard monthly hours for hourly pay (default: 173.33)
  -scheduler       Keep upcoming pay periods open (default: true)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/payroll.db"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "payroll.db", "SQLite database path")
	workers := flag.Int("workers", 4, "Concurrent employees per calculation")
	formulaTimeout := flag.Duration("formula-timeout", 2*time.Second, "Per-formula evaluation timeout")
	monthlyHours := flag.String("monthly-hours", "173.33", "Standard monthly hours for hourly pay")
	withScheduler := flag.Bool("scheduler", true, "Keep upcoming pay periods open")
	flag.Parse()

	hours, err := engine.ParseDecimal(*monthlyHours)
	if err != nil {
		log.Fatalf("Invalid -monthly-hours: %v", err)
	}

	// Initialize store
	store, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize orchestrator and handler
	orch := payroll.NewOrchestrator(store, payroll.Config{
		Workers:              *workers,
		FormulaTimeout:       *formulaTimeout,
		StandardMonthlyHours: hours,
	})
	handler := api.NewHandler(store, orch)

	// Create router
	router := api.NewRouter(handler)

	// Period scheduler
	scheduler := api.NewPeriodScheduler(store)
	scheduler.Enabled = *withScheduler
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
