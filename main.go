package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"trialsim/internal/config"
	"trialsim/internal/container"
	"trialsim/ui"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load application configuration
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create dependency injection container; without DATABASE_URL runs stay in memory
	appContainer, err := container.Open(ctx, appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	// The report viewer shares the run store, so in-memory runs are browsable too
	viewer, err := ui.NewApp(appContainer.Runs, ui.Config{Port: appConfig.Server.UIPort})
	if err != nil {
		log.Fatalf("Failed to create report viewer: %v", err)
	}
	go func() {
		log.Printf("📑 Report viewer on http://localhost:%s", appConfig.Server.UIPort)
		if err := viewer.Start(appConfig.Server.UIPort); err != nil {
			log.Printf("❌ report viewer stopped: %v", err)
		}
	}()

	server := ui.NewServer(appContainer.Services())
	log.Printf("🚀 Starting trialsim API on port %s", appConfig.Server.Port)
	if err := server.Start(ctx, ":"+appConfig.Server.Port); err != nil {
		log.Fatal(err)
	}
	log.Println("✅ Server stopped")
}
