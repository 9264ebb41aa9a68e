package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"trialsim/internal/config"
	"trialsim/internal/container"
	"trialsim/ui"
)

// Standalone report viewer. Useful against a shared database; with the
// in-memory store it only shows runs made by this process, which is none.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	c, err := container.Open(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to open run store:", err)
	}
	defer c.Shutdown(context.Background())

	app, err := ui.NewApp(c.Runs, ui.Config{Port: cfg.Server.UIPort})
	if err != nil {
		log.Fatal("Failed to create UI app:", err)
	}

	log.Printf("Starting trialsim report viewer on http://localhost:%s", cfg.Server.UIPort)
	log.Fatal(app.Start(cfg.Server.UIPort))
}
