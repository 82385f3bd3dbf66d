package main

import (
	"context"
	"log"
	"os"

	"github.com/example/meeting-relay/config"
	"github.com/example/meeting-relay/middleware/ratelimit"
	"github.com/example/meeting-relay/modules/api"
	"github.com/example/meeting-relay/modules/auth"
	"github.com/example/meeting-relay/modules/cache"
	"github.com/example/meeting-relay/modules/iceservers"
	"github.com/example/meeting-relay/modules/meetings"
	"github.com/example/meeting-relay/modules/relay"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Meeting Relay - Fiber WebSocket signaling + room coordination ===")

	cfg := config.Load()

	logLevel := mono.LogLevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = mono.LogLevelDebug
	case "warn":
		logLevel = mono.LogLevelWarn
	case "error":
		logLevel = mono.LogLevelError
	}
	logFormat := mono.LogFormatText
	if cfg.LogFormat == "json" {
		logFormat = mono.LogFormatJSON
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(logLevel),
		mono.WithLogFormat(logFormat),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// Create modules
	cacheModule := cache.NewModule(cfg.Cache, logger.WithModule("cache"))

	// Message limits live in Redis when it is configured so every replica
	// shares them; otherwise they stay in process.
	var limiter ratelimit.Limiter
	if client := cacheModule.RedisClient(); client != nil {
		limiter = ratelimit.NewSlidingWindow(client, "ratelimit:")
	} else {
		limiter = ratelimit.NewTokenBucket()
	}

	rateLimitMiddleware, err := ratelimit.New(limiter, logger.WithModule("rate-limit"),
		ratelimit.WithServiceLimit(meetings.ServiceCreate, cfg.MeetingCreateLimit, cfg.MeetingCreateWindow),
		ratelimit.WithServiceLimit(meetings.ServiceSchedule, cfg.MeetingCreateLimit, cfg.MeetingCreateWindow),
		// Meeting creation and scheduling are limited per host.
		ratelimit.WithClientIDField("hostId"),
	)
	if err != nil {
		log.Fatalf("Failed to create rate limiting middleware: %v", err)
	}

	authModule := auth.NewModule(cfg.Auth, logger.WithModule("auth"))
	relayModule := relay.NewModule(logger.WithModule("relay"), cfg.RelayOptions()...)
	meetingsModule := meetings.NewModule(cfg.Meetings, logger.WithModule("meetings"))

	iceModule, err := iceservers.NewModule(cfg.ICEServers, cacheModule.Store(), logger.WithModule("iceservers"))
	if err != nil {
		log.Fatalf("Invalid ICE server configuration: %v", err)
	}

	apiModule := api.NewModule(cfg.API, logger.WithModule("api"))

	// The hub and limiter are shared in process rather than exposed via
	// ServiceContainer: every connection's outbox lives in this process.
	apiModule.SetHub(relayModule.GetHub())
	apiModule.SetLimiter(limiter)

	// Register modules with the framework.
	// Order: middleware first so it sees service registrations, then
	// independent modules, then modules with dependencies
	// - cache: Redis or in-process store (ICE server list)
	// - auth: token verification service
	// - relay: connection registry, rooms, signaling (event emitter)
	// - meetings: meeting store (service provider + event consumer)
	// - iceservers: STUN/TURN list (service provider)
	// - api: Driving adapter (Fiber HTTP/WebSocket server)
	app.Register(rateLimitMiddleware)
	app.Register(cacheModule)
	app.Register(authModule)
	app.Register(relayModule)
	app.Register(meetingsModule)
	app.Register(iceModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg, iceModule.Provider().TURNEnabled())

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg *config.Config, turnEnabled bool) {
	port := cfg.API.Port
	cacheBackend := "in-process"
	if cfg.Cache.RedisAddr != "" {
		cacheBackend = "redis " + cfg.Cache.RedisAddr
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Printf("  - Meeting store: SQLite (%s)", cfg.Meetings.DBPath)
	log.Printf("  - Cache and rate limits: %s", cacheBackend)
	log.Printf("  - Room capacity: %d, lock release: %s", cfg.Relay.MaxRoomSize, cfg.Relay.ReleasePolicy)
	log.Printf("  - TURN credentials: %t", turnEnabled)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                              - Health check")
	log.Println("  GET    /api/v1/rooms                        - List live rooms")
	log.Println("  POST   /api/v1/meetings                     - Create a meeting")
	log.Println("  POST   /api/v1/meetings/schedule            - Schedule a meeting")
	log.Println("  GET    /api/v1/meetings/scheduled           - Your upcoming meetings")
	log.Println("  DELETE /api/v1/meetings/scheduled/:roomId   - Cancel a scheduled meeting")
	log.Println("  GET    /api/v1/meetings/user/history        - Meetings you hosted or joined")
	log.Println("  GET    /api/v1/meetings/:roomId             - Meeting details")
	log.Println("  GET    /api/v1/meetings/:roomId/participants - Live participants")
	log.Println("  GET    /api/v1/meetings/:roomId/sessions    - Participation history")
	log.Println("  POST   /api/v1/meetings/:roomId/end         - End a meeting (host only)")
	log.Println("  GET    /api/v1/ice-servers                  - STUN/TURN servers")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", port)
	log.Printf("  Connect with: ws://localhost:%s/ws?token=<jwt>", port)
	log.Println("  Message types: join-room, leave-room, offer, answer, ice-candidate,")
	log.Println("    send-chat-message, drawing-*, draw-shape, clear-canvas, ai-bot-lock, ai-bot-unlock, ai-bot-result")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
