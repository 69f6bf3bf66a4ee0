package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/ldtran/home-inventory/internal/adapter/handler"
	"github.com/ldtran/home-inventory/internal/adapter/storage"
	"github.com/ldtran/home-inventory/internal/config"
	"github.com/ldtran/home-inventory/internal/core/service"
	"github.com/ldtran/home-inventory/internal/port"
)

func main() {
	logger := log.New(os.Stdout, "inventory ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Backing table store
	var store port.TableStore
	var db *sql.DB
	switch cfg.StoreBackend {
	case "mysql":
		db, err = sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			logger.Fatalf("failed to connect mysql: %v", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			logger.Fatalf("failed to ping mysql: %v", err)
		}
		logger.Println("connected to mysql")
		store = storage.NewMySQLStore(db)
	case "sheet":
		store = storage.NewSheetStore(&http.Client{Timeout: 15 * time.Second}, cfg.SheetURL)
		logger.Printf("using sheet store at %s", cfg.SheetURL)
	}

	// Optional snapshot cache
	var cache port.SnapshotCache
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatalf("failed to connect redis: %v", err)
		}
		logger.Println("connected to redis")
		cache = storage.NewRedisCache(rdb, cfg.CacheTTL)
	}

	inventory := service.NewInventoryService(store, cache, logger)

	httpHandler := handler.NewHTTPHandler(inventory, logger, cfg.LowStockThreshold)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.LoggingMiddleware(logger)(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Println("HTTP server stopped")

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	logger.Println("connections closed")
}
