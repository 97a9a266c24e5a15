package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stolik/internal/auth"
	"stolik/internal/config"
	httpapi "stolik/internal/http"
	"stolik/internal/repository"
	"stolik/internal/service"

	_ "stolik/docs"
)

// @title stolik API
// @version 1.0
// @description Venue ordering service: menu items with size variants, seat orders, stock control.
// @BasePath /api/v1
func main() {
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Dev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		items  repository.ItemRepository
		orders repository.OrderRepository
		tx     repository.TxManager
	)
	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			logger.Fatal("open mysql", zap.Error(err))
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("ping mysql", zap.Error(err))
		}
		defer db.Close()
		store := repository.NewSQLStore(db)
		items, orders, tx = store, repository.NewSQLOrders(store), store
		logger.Info("using mysql store")
	} else {
		store := repository.NewMemoryStore()
		items, orders, tx = store, repository.NewMemoryOrders(store), repository.NewMemoryTx(store)
		logger.Info("using in-memory store")
	}

	var tokens auth.TokenStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("ping redis", zap.Error(err))
		}
		defer rdb.Close()
		tokens = auth.NewRedisTokens(rdb)
		logger.Info("using redis sessions")
	} else {
		tokens = auth.NewMemoryTokens()
		logger.Info("using in-memory sessions")
	}

	inventorySvc := service.NewInventoryService(items, tx, logger)
	ordersSvc := service.NewOrderService(items, orders, tx, logger)

	srv := httpapi.NewServer(inventorySvc, ordersSvc, tokens, logger)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Engine(),
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
