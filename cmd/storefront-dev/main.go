package main

import (
	"context"
	"fmt"
	"log"
	"os"

	postgresTC "github.com/testcontainers/testcontainers-go/modules/postgres"

	"storefront/internal/app"
)

func main() {
	ctx := context.Background()

	log.Println("Starting Postgres testcontainer...")

	pgContainer, err := postgresTC.Run(ctx,
		"postgres:16-alpine",
		postgresTC.WithDatabase("storefront"),
		postgresTC.WithUsername("storefront"),
		postgresTC.WithPassword("devpassword"),
		postgresTC.BasicWaitStrategies(),
	)
	if err != nil {
		log.Fatalf("Failed to start Postgres container: %v", err)
	}

	// Ensure container cleanup on exit
	defer func() {
		log.Println("Stopping Postgres container...")
		if err := pgContainer.Terminate(context.Background()); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
	}()

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("Failed to get connection string: %v", err)
	}
	log.Printf("Postgres started at %s", dsn)

	// Set environment variables for the application
	os.Setenv("STORAGE_DRIVER", "postgres")
	os.Setenv("DATABASE_URL", dsn)
	os.Setenv("WEBHOOK_MODE", "false")
	if os.Getenv("USE_REAL_PAYMENTS") == "" {
		os.Setenv("USE_REAL_PAYMENTS", "false")
	}
	if os.Getenv("LOG_FORMAT") == "" {
		os.Setenv("LOG_FORMAT", "console")
	}
	if os.Getenv("LOG_LEVEL") == "" {
		os.Setenv("LOG_LEVEL", "debug")
	}

	// Ensure TELEGRAM_BOT_TOKEN and ADMIN_ID are set
	if os.Getenv("TELEGRAM_BOT_TOKEN") == "" {
		log.Println("⚠️  TELEGRAM_BOT_TOKEN not set. Please set it in your .env file or environment.")
		log.Println("   The bot will fail to start without a valid token.")
	}
	if os.Getenv("ADMIN_ID") == "" {
		log.Println("⚠️  ADMIN_ID not set. Please set it in your .env file or environment.")
	}

	log.Println("Starting application with Postgres backend...")
	fmt.Println()

	application, err := app.New()
	if err != nil {
		log.Printf("Failed to create application: %v", err)
		return
	}

	// Run blocks until SIGINT/SIGTERM, then the deferred cleanup removes the container
	if err := application.Run(); err != nil {
		log.Printf("Application error: %v", err)
	}
}
