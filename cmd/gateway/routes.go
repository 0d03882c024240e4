package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"syntra-floor/config"
	"syntra-floor/internal/gateway"
	"syntra-floor/internal/logger"
	"syntra-floor/internal/rpc"
	"syntra-floor/internal/utils"
)

func main() {
	cfg := config.LoadConfig()

	opts := []logger.Option{logger.WithFormat(logger.ParseFormat(cfg.Service.LogFormat))}
	if cfg.Service.LogFile != "" {
		opts = append(opts, logger.WithFile(cfg.Service.LogFile))
	}
	lg := logger.NewLogger(cfg.Service.Name+"-gateway", opts...)
	defer lg.Close()

	floorClient, err := rpc.Dial(cfg.Gateway.FloorAddr, cfg.Gateway.RequestTimeout)
	if err != nil {
		log.Fatalf("Failed to create floor client: %v", err)
	}
	defer floorClient.Close()

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		lg.Warn("STARTUP", "JWT_SECRET not set, using an ephemeral secret; device tokens will not survive a restart")
	}
	j, err := utils.NewJWT(secret, cfg.Service.Name)
	if err != nil {
		log.Fatalf("Failed to set up JWT: %v", err)
	}
	if cfg.Auth.DeviceKey == "" {
		lg.Warn("STARTUP", "DEVICE_KEY not set, device login is disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	r, screens, err := gateway.NewRouter(gateway.Options{
		Backend:   floorClient,
		JWT:       j,
		DeviceKey: cfg.Auth.DeviceKey,
		TokenTTL:  cfg.Auth.TokenTTL,
		RateLimit: cfg.Gateway.RateLimit,
		GlobalRPS: cfg.Gateway.GlobalRPS,
		Timeout:   cfg.Gateway.RequestTimeout,
		Log:       lg,
	})
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Gateway.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("SHUTDOWN", "stopping gateway")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		lg.Error("SHUTDOWN", "http server shutdown failed", "error", err)
	}
	// Open screens still hold drafts and confirmations on the floor service.
	if n := screens.UnmountAll(ctx); n > 0 {
		lg.Info("SHUTDOWN", "released open screens", "count", n)
	}
}
