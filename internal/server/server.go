// Package server exposes the account manager over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/NikPlatonov/bank-account-api/pkg/bank"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Run boots the HTTP API and blocks until ctx is canceled or the listener
// fails.
func Run(ctx context.Context, cfg Config, manager *bank.Manager, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	router := NewRouter(cfg, manager, logger)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter assembles the gin engine with middleware and routes.
func NewRouter(cfg Config, manager *bank.Manager, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler := &httpHandler{logger: logger, manager: manager}

	accounts := router.Group("/accounts")
	accounts.POST("", handler.handleCreateAccount)
	accounts.GET("/:id", handler.handleGetAccount)
	accounts.DELETE("/:id", handler.handleCloseAccount)
	accounts.PUT("/:id/deposit", handler.handleDeposit)
	accounts.PUT("/:id/withdraw", handler.handleWithdraw)

	reserves := router.Group("/reserves")
	reserves.POST("", handler.handleCreateReserve)
	reserves.GET("/:id", handler.handleGetReserve)
	reserves.POST("/:id/commit", handler.handleCommitReserve)
	reserves.POST("/:id/rollback", handler.handleRollbackReserve)

	return router
}
