package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"docflow/internal/broker"
	"docflow/internal/config"
	"docflow/internal/dispatch"
	"docflow/internal/extract"
	server "docflow/internal/http"
	"docflow/internal/ollama"
	"docflow/internal/status"
	"docflow/internal/storage"
	"docflow/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	role := flag.String("role", "all", "process role: api|worker|all")
	flag.Parse()

	cfg := config.Load(*configPath)

	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	// Shared redis client for status tracking
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("invalid redis url: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	store, err := storage.New(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}

	statusStore := status.New(rdb)
	files := status.NewFileTracker(statusStore, time.Duration(cfg.FileTTL())*time.Second)
	models := status.NewModelTracker(statusStore, time.Duration(cfg.ModelTTL())*time.Second)

	// Broker connection is shared by the dispatcher and the workers.
	// Unreachable at startup is fatal; a lost connection later surfaces
	// per-operation as service-unavailable.
	conn := broker.New(cfg.RabbitMQ, logger)
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := conn.Connect(rootCtx); err != nil {
		log.Fatalf("broker connect failed: %v", err)
	}
	defer conn.Close()

	oc := ollama.NewClient(cfg.Ollama)
	dispatcher := dispatch.New(files, models, conn, logger)

	startWorker := func() {
		extractor := extract.NewExtractor(store, files, oc, logger)
		w := worker.New(conn, extractor, models, oc, logger)
		if err := w.Start(rootCtx); err != nil {
			log.Fatalf("worker start failed: %v", err)
		}
	}

	startAPI := func() {
		s := server.NewServer(cfg, server.Deps{
			Storage:    store,
			Dispatcher: dispatcher,
			Files:      files,
			Models:     models,
			Ollama:     oc,
			Redis:      rdb,
			Broker:     conn,
		}, logger)

		go func() {
			<-rootCtx.Done()
			_ = s.Shutdown()
		}()

		if err := s.Listen(); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	}

	switch *role {
	case "api":
		startAPI()
	case "worker":
		startWorker()
		<-rootCtx.Done()
	case "all":
		startWorker()
		startAPI()
	default:
		log.Fatalf("invalid role: %s (expected api|worker|all)", *role)
	}

	logger.Info("shutting down")
}
