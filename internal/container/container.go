package container

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"trialsim/adapters/db/postgres/migrations"
	"trialsim/adapters/postgres"
	"trialsim/adapters/rng"
	"trialsim/app"
	"trialsim/internal/config"
	"trialsim/internal/errors"
	"trialsim/internal/metrics"
	"trialsim/internal/testkit"
	"trialsim/ports"
	"trialsim/ui"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB       *sqlx.DB
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Repositories (data access layer)
	Runs    ports.RunRepository
	Designs ports.DesignRepository
	RNG     ports.RNGPort

	// In-memory stores, set when no database is configured
	TestKit *testkit.TestKit
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
	}
	if cfg.Metrics.Enabled {
		c.Metrics = metrics.New(c.Registry)
	}
	return c, nil
}

// Open connects to postgres when DATABASE_URL is set and falls back to
// in-memory stores otherwise.
func Open(ctx context.Context, cfg *config.Config) (*Container, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.HasDatabase() {
		log.Printf("[Container] DATABASE_URL not set, runs are kept in memory")
		c.InitInMemory()
		return c, nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	if err := c.InitWithDatabase(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// InitWithDatabase migrates the schema and wires the postgres repositories.
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	c.DB = db

	if err := db.PingContext(ctx); err != nil {
		return errors.DatabaseError("database connection test failed", err)
	}

	applied, err := migrations.NewMigrator(db.DB, log.Writer()).Up(ctx)
	if err != nil {
		return errors.Wrap(err, "database migration failed")
	}
	if len(applied) > 0 {
		log.Printf("[Container] applied migrations %v", applied)
	}

	c.Runs = postgres.NewRunRepository(db)
	c.Designs = postgres.NewDesignRepository(db)
	c.RNG = rng.New()
	log.Printf("[Container] initialized with database connection")
	return nil
}

// InitInMemory wires the in-memory stores.
func (c *Container) InitInMemory() {
	c.TestKit = testkit.NewTestKit()
	c.Runs = c.TestKit.RunRepository()
	c.Designs = c.TestKit.DesignRepository()
	c.RNG = c.TestKit.RNGAdapter()
}

// Deps returns the dependencies shared by the simulation services.
func (c *Container) Deps() app.Deps {
	return app.Deps{
		RNG:      c.RNG,
		Runs:     c.Runs,
		Metrics:  c.Metrics,
		Defaults: app.DefaultsFromConfig(c.Config),
	}
}

// Services returns the API service set.
func (c *Container) Services() ui.Services {
	return ui.NewServices(c.Deps(), c.Designs, c.Registry)
}

// Shutdown releases the database connection.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
