package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/SmakGames/Companion/internal/account"
	"github.com/SmakGames/Companion/internal/chat"
	"github.com/SmakGames/Companion/internal/clockx"
	"github.com/SmakGames/Companion/internal/config"
	"github.com/SmakGames/Companion/internal/database"
	"github.com/SmakGames/Companion/internal/handlers"
	"github.com/SmakGames/Companion/internal/identity"
	"github.com/SmakGames/Companion/internal/middleware"
	"github.com/SmakGames/Companion/internal/openai"
	"github.com/SmakGames/Companion/internal/ratelimit"
	"github.com/SmakGames/Companion/internal/recovery"
	"github.com/SmakGames/Companion/internal/routes"
	"github.com/SmakGames/Companion/internal/services"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	if cfg.OpenAIAPIKey == "" {
		log.Println("⚠️  WARNING: OPENAI_API_KEY not set. Replies will fall back to canned responses.")
	}

	// Connect to PostgreSQL
	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	if err := database.InitPostgresTables(); err != nil {
		log.Fatal("Failed to initialize PostgreSQL tables:", err)
	}
	log.Println("✅ PostgreSQL tables ready")

	// Connect to Redis
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	// Connect to MongoDB
	log.Printf("Connecting to MongoDB...")
	if err := database.ConnectMongo(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.DisconnectMongo()

	clock := clockx.System{}

	// Chat history store on MongoDB
	history := chat.NewHistoryStore(database.DB.Collection("chat_history"), clock)
	if err := history.EnsureIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure MongoDB chat indexes: %v", err)
	} else {
		log.Println("✅ MongoDB chat indexes ensured")
	}

	// Relational stores
	identities := identity.NewPostgresStore(database.PostgresDB)
	accounts := account.NewStore(database.PostgresDB, clock)

	// Attempt counters on Redis. Recovery uses the defaults (5 per hour);
	// the HTTP layer gets its own, much looser policy over the same store.
	counters := ratelimit.NewRedisStore(database.RedisClient)
	recoveryLimiter := ratelimit.New(counters, 0, 0)
	httpLimiter := ratelimit.New(counters, middleware.GlobalRateLimitWindow, middleware.GlobalRateLimitMax)

	// Context window + reply generation
	builder := chat.NewWindowBuilder(history, nil, 0)
	generator := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIURL, cfg.OpenAIModel, cfg.OpenAITimeout)
	conversation := services.NewConversation(history, builder, generator, cfg.OpenAITimeout)

	recoverySvc := recovery.NewService(identities, recoveryLimiter)

	handlers.Init(identities, accounts, history, builder, conversation, recoverySvc)

	// Setup router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Redis-backed per-IP limit on everything below
	r.Use(middleware.GlobalRateLimit(httpLimiter))

	// Health check (no auth)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r, middleware.RequireAuth(identities, accounts))

	log.Println("📋 Registered routes:")
	log.Println("  GET  /health")
	log.Println("  POST /api/auth/signup")
	log.Println("  POST /api/auth/signin")
	log.Println("  POST /api/auth/reset-password")
	log.Println("  GET  /api/auth/me")
	log.Println("  POST /api/auth/signout")
	log.Println("  POST /api/auth/security-answer")
	log.Println("  GET  /api/account/status")
	log.Println("  GET  /api/profile")
	log.Println("  PUT  /api/profile")
	log.Println("  GET  /api/chat/history")
	log.Println("  POST /api/chat/context")
	log.Println("  POST /api/talk")
	log.Println("  GET  /ws/talk")

	log.Printf("🚀 Companion backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
