// cmd/server/main.go
// Main entry point for the realtime messaging core.
// This file bootstraps all components and starts the server.

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kiekchat/realtime-core/internal/api"
	"github.com/kiekchat/realtime-core/internal/auth"
	"github.com/kiekchat/realtime-core/internal/chathub"
	"github.com/kiekchat/realtime-core/internal/common/database"
	"github.com/kiekchat/realtime-core/internal/config"
	"github.com/kiekchat/realtime-core/internal/conversation"
	"github.com/kiekchat/realtime-core/internal/group"
	"github.com/kiekchat/realtime-core/internal/media"
	"github.com/kiekchat/realtime-core/internal/store"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("========================================")
	log.Println("🚀 Starting realtime messaging core")
	log.Println("========================================")

	log.Println("📁 Step 1: Loading .env file...")
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found (%v), using environment variables", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	log.Println("\n📋 Step 2: Loading configuration...")
	cfg := config.Load()

	log.Println("✔️  Step 3: Validating configuration...")
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed:", err)
	}
	log.Println("✅ Configuration is valid")

	log.Println("\n🗄️  Step 4: Connecting to PostgreSQL...")
	db, err := database.NewPostgresDBFromURL(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("❌ Failed to connect to PostgreSQL:", err)
	}
	defer db.Close()
	log.Println("✅ Connected to PostgreSQL successfully")

	log.Println("\n📮 Step 5: Connecting to Redis...")
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Warning: Invalid Redis URL (%v), continuing without Redis", err)
		} else {
			redisClient = redis.NewClient(opt)
			if err := redisClient.Ping(context.Background()).Err(); err != nil {
				log.Printf("⚠️  Redis ping failed: %v, continuing without Redis", err)
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("✅ Connected to Redis successfully")
			}
		}
	}

	log.Println("\n🔐 Step 6: Initializing store and auth...")
	repo := store.NewPostgresRepository(db)

	var throttle auth.LoginThrottle
	if redisClient != nil {
		throttle = auth.NewRedisLoginThrottle(redisClient)
		log.Println("   ✅ Login-failure throttling enabled (Redis)")
	} else {
		log.Println("   ⚠️  Login-failure throttling disabled (no Redis)")
	}

	tokens := auth.NewTokenService(repo, cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
	authService := auth.NewService(repo, tokens, throttle, cfg.BCryptCost)
	authHandler := auth.NewHandler(authService)
	authMiddleware := auth.NewMiddleware(authService)
	log.Println("✅ Auth system initialized")

	log.Println("\n🖼️  Step 7: Initializing media storage...")
	var mediaStore media.Store
	if cfg.HasMediaStorage() {
		sess, err := media.NewAWSSession(cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey)
		if err != nil {
			log.Printf("⚠️  Failed to init S3 session, falling back to local: %v", err)
			mediaStore = media.NewNoopStore()
		} else {
			mediaStore = media.NewS3Store(sess, cfg.S3Bucket, fmt.Sprintf("https://%s.s3.amazonaws.com", cfg.S3Bucket))
			log.Println("   ✅ Using S3 for message media")
		}
	} else {
		mediaStore = media.NewNoopStore()
		log.Println("   ⚠️  Using local no-op media store (development mode)")
	}

	log.Println("\n💬 Step 8: Initializing conversation and group services...")
	conversationService := conversation.NewService(repo, mediaStore)
	conversationHandler := conversation.NewHandler(conversationService)

	hub := chathub.New(repo, mediaStore, tokens)

	groupService := group.NewService(repo, hub)
	groupHandler := group.NewHandler(groupService)

	messageService := api.NewService(repo, hub)
	messageHandler := api.NewHandler(messageService)
	log.Println("✅ Messaging services initialized")

	log.Println("\n📡 Step 9: Starting connection hub heartbeat...")
	hub.StartHeartbeat()
	log.Println("✅ Heartbeat running (30s interval)")

	log.Println("\n🛣️  Step 10: Setting up routes...")
	router := mux.NewRouter()

	router.HandleFunc("/health", api.HealthCheck(hub)).Methods("GET")
	if cfg.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler()).Methods("GET")
		log.Println("   ✅ Metrics exposed at /metrics")
	}

	router.HandleFunc("/ws", chathub.ServeWS(hub)).Methods("GET")
	log.Println("   ✅ WebSocket endpoint registered at /ws")

	auth.RegisterPublicRoutes(router, authHandler)

	protected := router.PathPrefix("/api/v1").Subrouter()
	protected.Use(authMiddleware.Authenticate)
	auth.RegisterProtectedRoutes(protected, authHandler)
	conversation.RegisterRoutes(protected, conversationHandler)
	group.RegisterRoutes(protected, groupHandler)
	api.RegisterRoutes(protected, messageHandler)
	log.Println("   ✅ REST routes registered")

	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)

	log.Println("\n🔨 Step 11: Starting HTTP server...")
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Println("\n========================================")
		log.Printf("🚀 Server listening on http://localhost%s", srv.Addr)
		log.Printf("🌍 Environment: %s", cfg.Environment)
		log.Println("========================================")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n⚠️  Shutdown signal received...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Shutdown(ctx)

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server forced to shutdown:", err)
	}

	log.Println("✅ Server exited gracefully")
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Printf("%s %s [%d] %v", r.Method, r.RequestURI, wrapped.statusCode, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
