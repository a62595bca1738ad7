package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/retouchlab/support-chat/config"
	"github.com/retouchlab/support-chat/internal/queue"
	chat_repo "github.com/retouchlab/support-chat/internal/repo/chat"
	user_repo "github.com/retouchlab/support-chat/internal/repo/user"
	"github.com/retouchlab/support-chat/internal/routers"
	"github.com/retouchlab/support-chat/internal/utils/types"
	"github.com/retouchlab/support-chat/internal/websocket"
	"github.com/retouchlab/support-chat/internal/worker"
	"github.com/retouchlab/support-chat/state"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// initialize the application
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	state, err := state.InitAppState(ctx, stop)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application state")
	}
	defer state.Close()

	chatRepo := chat_repo.NewChatRepo(state)
	if err := chatRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure mongo indexes")
	}
	userRepo := user_repo.NewUserRepo(state)

	wsHub := websocket.NewHub()
	log.Info().Msg("Websocket hub initialized")

	producer := queue.NewProducer(state.Redis)
	gateway := websocket.NewGateway(wsHub, chatRepo, userRepo, producer)

	authFunc := websocket.JWTWebSocketAuth(state.JwtSecret.Public, state.Redis)

	wsHandler := websocket.NewWebSocketHandler(wsHub, gateway, authFunc)
	wsHandler.MaxConnections = 10000
	wsHandler.RateLimit.ConnectionsPerIP = 20
	go wsHandler.StartCleanup(ctx)

	log.Info().Msg("Websocket handler initialized")

	dlqConfig := types.DLQRetryConfig{
		BatchSize:      20,
		RetryInterval:  1 * time.Minute,
		MaxRetryCount:  5,
		BackoffFactor:  2.0,
		DatabaseName:   config.Conf.DATABASE.Mongo.Database,
		CollectionName: "notification_dlq",
	}

	workerPool := worker.NewWorkerPool(state.Redis, state.Mongo, 5, dlqConfig)
	workerPool.Start(ctx)
	workerPool.StartDLQWorker(ctx)
	workerPool.StartDLQRetryWorker(ctx)

	r := routers.NewRouter(state, wsHub, wsHandler, workerPool)

	server := &http.Server{
		Addr:         config.Conf.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// serve the application
	go func() {
		log.Info().Msgf("Starting server on http://localhost%s", config.Conf.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(fmt.Sprintf("ListenAndServe failed: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown initiated...")
	// gracefully shutdown the application
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Graceful shutdown failed: %v\n", err)
	} else {
		fmt.Println("Server exited gracefully.")
	}
	wsHub.Close()
	workerPool.Stop()
}
