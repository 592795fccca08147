package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/harshverma27/ZK-Battleship-on-Stellar/handlers"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/middleware"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/models"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/services"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/utils"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		AppName: "battleship-sync-relay",
	})

	app.Use(recover.New())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOriginsString,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Relay auth is opt-in: without RELAY_TOKEN the relay runs open.
	app.Use(middleware.RelayAuthMiddleware())

	// The database is optional. Without one the relay is purely in-memory,
	// which is enough for the protocol — the mirror only adds replay history
	// across restarts.
	var mirror *workers.MirrorWorker
	dsn := os.Getenv("DATABASE_URL")
	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Fatal("failed to connect to database:", err)
		}
		if err := db.AutoMigrate(
			&models.MoveMirror{},
			&models.MatchArchive{},
		); err != nil {
			log.Fatal("failed to migrate database:", err)
		}
		mirror = workers.NewMirrorWorker(db)
	} else {
		log.Println("⚠️  DATABASE_URL not set, move mirroring disabled")
	}

	replayEnabled := utils.R2Configured()
	if replayEnabled {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
	} else {
		log.Println("⚠️  R2 not configured, replay export disabled")
	}

	rooms := services.NewRoomDirectory()
	hub := handlers.NewHub()
	relay := handlers.NewRelay(hub, rooms, services.NewReplayService(replayEnabled), mirror)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if mirror != nil {
		go mirror.Run(ctx)
	}

	ttl := 24 * time.Hour
	if raw := os.Getenv("MATCH_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Printf("⚠️  Invalid MATCH_TTL %q, using default %s", raw, ttl)
		} else {
			ttl = parsed
		}
	}
	services.StartEvictionScheduler(rooms, relay.Registry(), ttl)

	handlers.SetupRelayRoutes(app, relay)

	addr := os.Getenv("RELAY_ADDR")
	if addr == "" {
		addr = ":3001"
	}

	go func() {
		if err := app.Listen(addr); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Relay listening on %s (ws endpoint: /ws)", addr)
	log.Printf("✅ Match eviction running (ttl %s)", ttl)
	if mirror != nil {
		log.Println("✅ Move mirror worker running")
	}
	if replayEnabled {
		log.Println("✅ Replay export to R2 enabled")
	}
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down relay...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
