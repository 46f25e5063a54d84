package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"hmm-go/internal/config"
	"hmm-go/internal/controller"
	"hmm-go/internal/handler"
	"hmm-go/internal/service"
	"hmm-go/internal/util"
	"hmm-go/pkg/mcp"

	"go.uber.org/zap"
)

func main() {
	var configPath = flag.String("config", "", "Path to app configuration file")
	var name = flag.String("name", "model", "Name of the saved model to serve")
	var port = flag.Int("port", 0, "Server port")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatal("Failed to load configuration:", err)
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.App.Port = *port
	}

	logger, err := util.NewLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully", zap.Any("config", cfg))

	store, err := service.NewModelStore(cfg.App.ModelDir, logger)
	if err != nil {
		logger.Fatal("Failed to create model store", zap.Error(err))
	}

	handle := service.NewModelHandle(nil, store, *name, logger)
	if store.Exists(*name) {
		if _, err := handle.Reload(); err != nil {
			logger.Fatal("Failed to load model", zap.String("name", *name), zap.Error(err))
		}
	} else {
		logger.Warn("No saved model yet, queries fail until one is reloaded",
			zap.String("path", store.Path(*name)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	modelController := controller.NewModelController(handle, logger)
	mcpServer := mcp.NewModelServer(handle, logger)

	go func() {
		if err := mcpServer.ListenAndServe(ctx, cfg.Mcp.GetAddress()); err != nil {
			logger.Error("MCP server stopped", zap.Error(err))
		}
	}()

	router := handler.SetupRouter(modelController, mcpServer, logger)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.App.Port), Handler: router}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logger.Info("Starting server", zap.Int("port", cfg.App.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
