package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Tutortoise/digit-recognition-service/digits"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	libPath, err := resolveSharedLibrary(cfg.Runtime)
	if err != nil {
		logger.Fatal("Failed to locate ONNX Runtime", zap.Error(err))
	}

	destroyRuntime, err := initRuntime(libPath)
	if err != nil {
		logger.Fatal("Failed to initialize ONNX environment", zap.Error(err), zap.String("library", libPath))
	}
	defer destroyRuntime()

	modelCfg, err := resolveModel(cfg.Model)
	if err != nil {
		logger.Fatal("Failed to load model", zap.Error(err))
	}

	opts := digits.SessionOptions{
		ModelPath:      modelCfg.Path,
		InputName:      modelCfg.InputName,
		OutputName:     modelCfg.OutputName,
		IntraOpThreads: cfg.Runtime.IntraOpThreads,
		InterOpThreads: cfg.Runtime.InterOpThreads,
	}
	pool, err := NewModelSessionPool(func() (digits.Scorer, error) {
		return digits.NewModelSession(opts)
	}, cfg.Pool)
	if err != nil {
		logger.Fatal("Failed to create model session pool", zap.Error(err))
	}
	defer pool.Destroy()

	resampler, err := digits.NewResampler(cfg.Resize.Backend)
	if err != nil {
		logger.Fatal("Invalid resize backend", zap.Error(err))
	}

	state := &AppState{
		Config:    cfg,
		Pool:      pool,
		Resampler: resampler,
		Metrics:   NewMetrics(pool),
		Logger:    logger,
	}
	r := newRouter(state)

	logger.Info("Model loaded",
		zap.String("model", modelCfg.Path),
		zap.String("input", modelCfg.InputName),
		zap.String("output", modelCfg.OutputName),
		zap.String("library", libPath),
		zap.Int("pool_size", cfg.Pool.Size),
		zap.String("resize_backend", resampler.Name()),
		zap.Strings("cpu_features", digits.CPUFeatures()),
	)

	if cfg.Lambda.Enabled {
		logger.Info("Serving through the Lambda runtime")
		serveLambda(r)
		return
	}

	srv := &http.Server{
		Handler:      r,
		Addr:         cfg.Server.Addr(),
		WriteTimeout: cfg.Server.WriteTimeout,
		ReadTimeout:  cfg.Server.ReadTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}
