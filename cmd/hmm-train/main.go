package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hmm-go/internal/config"
	"hmm-go/internal/service"
	"hmm-go/internal/util"

	"go.uber.org/zap"
)

func main() {
	var configPath = flag.String("config", "", "Path to app configuration file")
	var corpusPath = flag.String("corpus", "", "Path to a word/TAG corpus, one sentence per line")
	var name = flag.String("name", "model", "Name to save the model under")
	var modelDir = flag.String("model-dir", "", "Directory to save models in")
	var order = flag.Int("order", 0, "Transition order")
	var delta = flag.Float64("delta", 0, "Additive smoothing delta")
	var cutoff = flag.Int64("cutoff", 0, "Drop emissions seen fewer times than this")
	var smoothing = flag.String("smoothing", "", "Smoothing: additive or witten-bell")
	var workers = flag.Int("workers", 0, "Number of counting shards")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatal("Failed to load configuration:", err)
		}
		cfg = loaded
	}

	// Flags that were set override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model-dir":
			cfg.App.ModelDir = *modelDir
		case "order":
			cfg.Training.Order = *order
		case "delta":
			cfg.Training.Delta = *delta
		case "cutoff":
			cfg.Training.Cutoff = *cutoff
		case "smoothing":
			cfg.Training.Smoothing = *smoothing
		case "workers":
			cfg.Training.Workers = *workers
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	logger, err := util.NewLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	if *corpusPath == "" {
		logger.Fatal("No corpus given, use -corpus")
	}

	smoother, err := service.NewSmoother(cfg.Training.Smoothing, cfg.Training.Delta)
	if err != nil {
		logger.Fatal("Failed to create smoother", zap.Error(err))
	}

	trainer, err := service.NewTrainer(service.TrainerOptions{
		Order:    cfg.Training.Order,
		Cutoff:   cfg.Training.Cutoff,
		Smoother: smoother,
		Workers:  cfg.Training.Workers,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create trainer", zap.Error(err))
	}

	store, err := service.NewModelStore(cfg.App.ModelDir, logger)
	if err != nil {
		logger.Fatal("Failed to create model store", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model, err := trainer.TrainFile(ctx, *corpusPath)
	if err != nil {
		logger.Fatal("Training failed", zap.String("corpus", *corpusPath), zap.Error(err))
	}

	if err := store.Save(model, *name); err != nil {
		logger.Fatal("Failed to save model", zap.String("name", *name), zap.Error(err))
	}

	logger.Info("Training complete",
		zap.String("name", *name),
		zap.String("path", store.Path(*name)),
		zap.Any("summary", model.Summary()))
}
