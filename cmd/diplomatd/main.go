package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/diplomat/internal/auth"
	"github.com/freeeve/diplomat/internal/config"
	"github.com/freeeve/diplomat/internal/handler"
	"github.com/freeeve/diplomat/internal/logger"
	"github.com/freeeve/diplomat/internal/middleware"
	"github.com/freeeve/diplomat/internal/repository/postgres"
	redisrepo "github.com/freeeve/diplomat/internal/repository/redis"
	"github.com/freeeve/diplomat/internal/service"
	"github.com/freeeve/diplomat/migrations"
)

func main() {
	godotenv.Load()
	logger.Init()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Config load failed")
	}
	log.Info().Str("databaseURL", cfg.DatabaseURL).Msg("Config loaded")

	// Database
	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()
	if err := postgres.Migrate(db, migrations.FS); err != nil {
		log.Fatal().Err(err).Msg("Migrations failed")
	}

	// Redis
	redisClient, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Enable Redis keyspace notifications for timer expiry events.
	if err := redisClient.Underlying().ConfigSet(context.Background(), "notify-keyspace-events", "Ex").Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to set Redis keyspace notifications (timer expiry falls back to polling)")
	}

	// Repos
	userRepo := postgres.NewUserRepo(db)
	gameRepo := postgres.NewGameRepo(db)
	phaseRepo := postgres.NewPhaseRepo(db)
	messageRepo := postgres.NewMessageRepo(db)
	channelRepo := postgres.NewChannelRepo(db)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)
	googleOAuth := auth.NewGoogleOAuth(
		os.Getenv("GOOGLE_CLIENT_ID"),
		os.Getenv("GOOGLE_CLIENT_SECRET"),
		os.Getenv("GOOGLE_REDIRECT_URL"),
	)

	// WebSocket hub doubles as the service-layer notifier.
	wsHub := handler.NewHub()

	// Services
	gameSvc := service.NewGameService(cfg, gameRepo, phaseRepo, redisClient, wsHub)
	orderSvc := service.NewOrderService(gameRepo, phaseRepo, redisClient)
	phaseSvc := service.NewPhaseService(cfg, gameRepo, phaseRepo, redisClient, wsHub)

	// Scheduler (keyspace expiry fast path + polling backstop)
	scheduler := service.NewScheduler(cfg, redisClient.Underlying(), phaseSvc, phaseRepo, wsHub)

	// Handlers
	authHandler := handler.NewAuthHandler(googleOAuth, jwtMgr, userRepo)
	userHandler := handler.NewUserHandler(userRepo)
	gameHandler := handler.NewGameHandler(gameSvc, phaseSvc)
	orderHandler := handler.NewOrderHandler(orderSvc, phaseSvc, wsHub)
	phaseHandler := handler.NewPhaseHandler(phaseRepo)
	messageHandler := handler.NewMessageHandler(messageRepo, phaseRepo, wsHub)
	channelHandler := handler.NewChannelHandler(channelRepo, gameSvc, orderSvc)
	wsHandler := handler.NewWSHandler(wsHub, jwtMgr)

	// Router
	mux := http.NewServeMux()
	authMw := auth.Middleware(jwtMgr)
	rateLimitMw := middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth (public)
	mux.HandleFunc("GET /auth/google/login", authHandler.GoogleLogin)
	mux.HandleFunc("GET /auth/google/callback", authHandler.GoogleCallback)
	mux.HandleFunc("POST /auth/refresh", authHandler.RefreshToken)
	mux.HandleFunc("GET /auth/dev", authHandler.DevLogin)

	// Protected API routes
	api := http.NewServeMux()
	api.HandleFunc("GET /users/me", userHandler.GetMe)
	api.HandleFunc("PATCH /users/me", userHandler.UpdateMe)
	api.HandleFunc("GET /users/{id}", userHandler.GetUser)
	api.HandleFunc("POST /games", gameHandler.CreateGame)
	api.HandleFunc("GET /games", gameHandler.ListGames)
	api.HandleFunc("GET /games/{id}", gameHandler.GetGame)
	api.HandleFunc("DELETE /games/{id}", gameHandler.DeleteGame)
	api.HandleFunc("POST /games/{id}/join", gameHandler.JoinGame)
	api.HandleFunc("POST /games/{id}/start", gameHandler.StartGame)
	api.HandleFunc("POST /games/{id}/quit", gameHandler.QuitGame)
	api.HandleFunc("POST /games/{id}/replace", gameHandler.ReplacePlayer)
	api.HandleFunc("POST /games/{id}/process", gameHandler.ProcessPhase)
	api.HandleFunc("PUT /games/{id}/deadline", gameHandler.SetDeadline)
	api.HandleFunc("POST /games/{id}/draw", gameHandler.VoteDraw)
	api.HandleFunc("DELETE /games/{id}/draw", gameHandler.RetractDrawVote)
	api.HandleFunc("POST /games/{id}/orders", orderHandler.SubmitOrders)
	api.HandleFunc("GET /games/{id}/orders", orderHandler.GetOrders)
	api.HandleFunc("DELETE /games/{id}/orders", orderHandler.ClearOrders)
	api.HandleFunc("GET /games/{id}/orders/legal", orderHandler.LegalOrders)
	api.HandleFunc("GET /games/{id}/orders/history", orderHandler.OrderHistory)
	api.HandleFunc("POST /games/{id}/orders/ready", orderHandler.MarkReady)
	api.HandleFunc("DELETE /games/{id}/orders/ready", orderHandler.UnmarkReady)
	api.HandleFunc("GET /games/{id}/state", orderHandler.GetState)
	api.HandleFunc("GET /games/{id}/phases", phaseHandler.ListPhases)
	api.HandleFunc("GET /games/{id}/phases/current", phaseHandler.CurrentPhase)
	api.HandleFunc("GET /games/{id}/messages", messageHandler.ListMessages)
	api.HandleFunc("POST /games/{id}/messages", messageHandler.SendMessage)
	api.HandleFunc("POST /games/{id}/channels", channelHandler.BindChannel)
	api.HandleFunc("GET /games/{id}/channels", channelHandler.ListChannels)
	api.HandleFunc("DELETE /games/{id}/channels/{channelId}", channelHandler.UnbindChannel)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", authMw(rateLimitMw(api))))

	// Channel bridge pull (auth via bind token, not JWT)
	mux.HandleFunc("GET /api/v1/channel/state", channelHandler.ChannelState)

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.CORS("*"), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Rebuild Redis projections from Postgres, then let the scheduler
	// resolve anything that expired while the server was down.
	if err := phaseSvc.RecoverActiveGames(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to recover active games (non-fatal)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	scheduler.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
