package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulBabatuyi/wastex-messaging/internal/accounts"
	"github.com/PaulBabatuyi/wastex-messaging/internal/auth"
	"github.com/PaulBabatuyi/wastex-messaging/internal/cache"
	"github.com/PaulBabatuyi/wastex-messaging/internal/config"
	"github.com/PaulBabatuyi/wastex-messaging/internal/data"
	"github.com/PaulBabatuyi/wastex-messaging/internal/db"
	"github.com/PaulBabatuyi/wastex-messaging/internal/gateway"
	"github.com/PaulBabatuyi/wastex-messaging/internal/logging"
	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"github.com/PaulBabatuyi/wastex-messaging/internal/middleware"
	"github.com/PaulBabatuyi/wastex-messaging/internal/realtime"
	"github.com/PaulBabatuyi/wastex-messaging/internal/rpc"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// a missing .env is fine; the environment may be set directly
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func newJWTManager(cfg config.JWTConfig) *auth.JWTManager {
	// JWT_KEYS allows token rotation; JWT_SECRET alone is a single key
	if len(cfg.Keys) > 0 {
		return auth.NewJWTManagerFromKeys(cfg.Keys, cfg.ActiveKid, cfg.TTL)
	}
	return auth.NewJWTManager(cfg.Secret, cfg.TTL)
}

// newCache connects to Redis when configured and otherwise keeps everything
// in process memory.
func newCache(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (cache.Cache, error) {
	if cfg.URL == "" {
		log.Warn().Msg("REDIS_URL not set, using in-memory cache (single instance only)")
		return cache.NewMemory(time.Minute), nil
	}
	r, err := cache.NewRedis(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func grpcServerOptions(cfg config.Config, jwtMgr *auth.JWTManager, limiter *middleware.LimiterStore) ([]grpc.ServerOption, error) {
	var opts []grpc.ServerOption

	// If TLS certs are configured, create server credentials
	if cfg.GRPC.TLSCert != "" && cfg.GRPC.TLSKey != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.GRPC.TLSCert, cfg.GRPC.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certs: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}

	limited := map[string]bool{
		rpc.RegisterMethod: true,
		rpc.LoginMethod:    true,
	}
	// rate limiter -> auth
	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			middleware.RateLimitUnaryInterceptor(limiter, limited),
			authUnaryInterceptor(jwtMgr),
		),
		grpc.ChainStreamInterceptor(authStreamInterceptor(jwtMgr)),
	)
	return opts, nil
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer func() {
		_ = dbClient.Close(context.Background())
	}()
	if err := dbClient.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	kv, err := newCache(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer kv.Close()

	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())
	profiles := cache.NewProfileCache(usersStore, kv, cfg.Redis.ProfileTTL, log)
	attempts := cache.NewAttemptGuard(kv, cfg.Redis.AttemptTTL)
	jwtMgr := newJWTManager(cfg.JWT)

	hub := realtime.NewHub(log)
	var publisher messaging.Publisher = hub
	if cfg.Messaging.RealtimeSource == config.RealtimeChangeStream {
		// inserts from every instance reach the hub through the change stream
		publisher = nil
		go realtime.NewPump(msgsStore, hub, log).Run(ctx)
	}

	svc := messaging.NewService(msgsStore, profiles, attempts, messaging.Options{
		ConversationFetchLimit: cfg.Messaging.ConversationFetchLimit,
		ThreadFetchLimit:       cfg.Messaging.ThreadFetchLimit,
		Publisher:              publisher,
		Logger:                 log,
	})
	accts := accounts.NewService(usersStore, jwtMgr)

	limiter := middleware.NewLimiterStore(cfg.RateLimit.RPM, cfg.RateLimit.Burst, cfg.RateLimit.TTL)
	defer limiter.Stop()

	opts, err := grpcServerOptions(cfg, jwtMgr, limiter)
	if err != nil {
		return err
	}
	grpcServer := grpc.NewServer(opts...)
	registerService(grpcServer, newServer(svc, accts, hub, log))

	gw := gateway.NewServer(gateway.Options{
		Messaging: svc,
		Accounts:  accts,
		JWT:       jwtMgr,
		Feed:      hub,
		Limiter:   limiter,
		Health: func(ctx context.Context) error {
			if err := dbClient.Ping(ctx); err != nil {
				return err
			}
			return kv.Ping(ctx)
		},
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Logger:         log,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", lis.Addr().String()).Bool("tls", cfg.GRPC.TLSCert != "").Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("HTTP shutdown")
	}
	// Subscribe streams only end with their clients; cut them off at the deadline
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}
	return err
}
