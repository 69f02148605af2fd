// Command bayeuxd runs a standalone Bayeux long-polling push server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cometd-go/bayeux/bayeux"
	"github.com/cometd-go/bayeux/internal/config"
	"github.com/cometd-go/bayeux/internal/logger"
)

func main() {
	cfg, err := config.Load("config.json")
	if err != nil {
		logger.Init("info")
		logger.Fatal("bayeuxd: config error", "error", err)
	}
	logger.Init(cfg.LogLevel)

	opts := bayeux.DefaultOptions
	opts.Timeout = time.Duration(cfg.Timeout) * time.Millisecond
	opts.Interval = time.Duration(cfg.Interval) * time.Millisecond
	opts.MaxInterval = time.Duration(cfg.MaxInterval) * time.Millisecond
	opts.SweepPeriod = time.Duration(cfg.SweepPeriod) * time.Millisecond
	opts.LogLevel = cfg.LogLevel
	opts.MaxSessionsPerBrowser = cfg.MaxSessionsPerBrowser
	opts.MultiSessionInterval = time.Duration(cfg.MultiSessionInterval) * time.Millisecond

	broker := bayeux.NewBroker(opts, nil)

	var ack *bayeux.AckExtension
	if cfg.EnableAck {
		ack = bayeux.NewAckExtension()
		broker.AddExtension(ack.ServerExtension())
	}

	broker.OnSessionAdded(func(s *bayeux.Session) {
		logger.Debug("session handshaken", "session", s.ID())
	})
	broker.OnSessionRemoved(func(s *bayeux.Session, timeout bool) {
		logger.Debug("session gone", "session", s.ID(), "timeout", timeout)
	})

	transport := bayeux.NewHTTPTransport(broker, ack)
	router := bayeux.NewRouter(cfg.MountPath, transport)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		logger.Info("bayeuxd: listening", "addr", cfg.ListenAddr, "path", cfg.MountPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("bayeuxd: server error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	stop()

	logger.Info("bayeuxd: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("bayeuxd: shutdown error", "error", err)
	}
	broker.Close()
}
