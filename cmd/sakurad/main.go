// Command sakurad hosts a Sakura facade as a long-running process: it
// loads tree and file definitions from disk into the garden, starts
// the worker pool, and optionally exposes the HTTP facade and cron
// scheduler, shutting down gracefully on an OS signal or HTTP error.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sakura-lang/sakura/internal/config"
	"github.com/sakura-lang/sakura/internal/logging"
	"github.com/sakura-lang/sakura/pkg/httpapi"
	"github.com/sakura-lang/sakura/pkg/sakura"
	"github.com/sakura-lang/sakura/pkg/schedule"
	"github.com/sakura-lang/sakura/pkg/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger := logging.New(cfg.Logging)
	logging.SetDefault(appLogger)
	appLogger.Info("starting sakurad", "worker_count", cfg.Engine.WorkerCount)

	streamManager := stream.NewManager(stream.WithLogger(appLogger))
	listener := stream.NewInterpListener(streamManager)

	sk := sakura.New(sakura.Config{
		WorkerCount:   cfg.Engine.WorkerCount,
		QueueCapacity: cfg.Engine.QueueCapacity,
		Listener:      listener,
	})
	defer sk.Close()

	if err := loadTrees(sk, cfg.Garden.TreesDir); err != nil {
		appLogger.Error("failed to load trees", "dir", cfg.Garden.TreesDir, "error", err)
		os.Exit(1)
	}
	if err := loadFiles(sk, cfg.Garden.FilesDir); err != nil {
		appLogger.Error("failed to load files", "dir", cfg.Garden.FilesDir, "error", err)
		os.Exit(1)
	}

	var sched *schedule.Scheduler
	if cfg.Schedule.Enabled {
		loc, err := time.LoadLocation(cfg.Schedule.Timezone)
		if err != nil {
			appLogger.Warn("invalid schedule timezone, falling back to UTC", "timezone", cfg.Schedule.Timezone, "error", err)
			loc = time.UTC
		}
		sched = schedule.New(sk, schedule.WithLogger(appLogger), schedule.WithLocation(loc))
		sched.Start()
		appLogger.Info("scheduler started", "timezone", loc.String())
	}

	var httpServer *http.Server
	serverErrors := make(chan error, 1)
	if cfg.HTTP.Enabled {
		api := httpapi.New(sk, httpapi.WithLogger(appLogger))
		httpServer = &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
			Handler:      api.Engine(),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		}
		go func() {
			appLogger.Info("http facade listening", "addr", httpServer.Addr)
			serverErrors <- httpServer.ListenAndServe()
		}()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			appLogger.Error("http facade error", "error", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		appLogger.Info("shutdown initiated", "signal", sig)

		if sched != nil {
			sched.Stop()
			appLogger.Info("scheduler stopped")
		}

		if httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				appLogger.Error("http facade shutdown failed", "error", err)
			}
		}

		appLogger.Info("sakurad stopped")
	}
}

// loadTrees walks dir for *.sakura.json tree definitions and adds each to
// the garden. A missing directory is not an error: the host may populate
// the garden entirely through the HTTP facade instead.
func loadTrees(sk *sakura.Sakura, dir string) error {
	return walkJSON(dir, ".sakura.json", func(path string, data []byte) error {
		tree, err := httpapi.TreeFromJSON(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return sk.AddTree(tree)
	})
}

// loadFiles walks dir and registers every regular file's raw bytes with
// the garden under its path relative to dir.
func loadFiles(sk *sakura.Sakura, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return sk.AddFile(rel, content)
	})
}

func walkJSON(dir, suffix string, handle func(path string, data []byte) error) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, suffix) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return handle(path, content)
	})
}
