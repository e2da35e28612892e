package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	"github.com/gluk-w/clawlink/internal/config"
	"github.com/gluk-w/clawlink/internal/crypto"
	"github.com/gluk-w/clawlink/internal/gwconn"
	"github.com/gluk-w/clawlink/internal/handlers"
	"github.com/gluk-w/clawlink/internal/logging"
	"github.com/gluk-w/clawlink/internal/session"
	"github.com/gluk-w/clawlink/internal/store"
)

func main() {
	config.Load()
	logging.Init()

	if err := store.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer store.Close()

	sessCfg, err := buildSessionConfig()
	if err != nil {
		log.Fatalf("Session config: %v", err)
	}
	log.Printf("Config: profile=%q chat=%s shell=%s listen=%s",
		config.Cfg.Profile, sessCfg.ChatURL, sessCfg.ShellURL, config.Cfg.ListenAddr)

	sess := session.New(sessCfg)
	handlers.Sess = sess

	// The reconnect loop only guards established connections, so a dead
	// gateway at boot is fatal; the process supervisor owns boot retry.
	if err := sess.Start(context.Background()); err != nil {
		log.Fatalf("Gateway connect: %v", err)
	}
	log.Printf("Gateway session established (chat=%s shell=%s)", sessCfg.ChatURL, sessCfg.ShellURL)

	// Nightly connection-log prune
	cronRunner := cron.New()
	if _, err := cronRunner.AddFunc("0 3 * * *", pruneConnectionLog); err != nil {
		log.Fatalf("Cron schedule: %v", err)
	}
	cronRunner.Start()

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", handlers.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", handlers.GetStatus)
		r.Get("/events", handlers.GetEvents)

		r.Post("/chat/send", handlers.SendChatMessage)
		r.Get("/chat/messages", handlers.ListChatMessages)
		r.Post("/chat/messages/{id}/retry", handlers.RetryChatMessage)

		r.Post("/shell/input", handlers.ShellInput)
		r.Post("/shell/resize", handlers.ShellResize)
		r.Get("/shell/screen", handlers.GetShellScreen)

		r.Get("/logs", handlers.GetServerLogs)
		r.Delete("/logs", handlers.ClearServerLogs)
		r.Get("/connection-log", handlers.GetConnectionLog)

		r.Get("/profiles", handlers.ListProfiles)
		r.Post("/profiles", handlers.SaveProfile)
		r.Delete("/profiles/{name}", handlers.DeleteProfile)
		r.Get("/profiles/export", handlers.ExportProfiles)
		r.Post("/profiles/import", handlers.ImportProfiles)
	})

	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	cronRunner.Stop()
	sess.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// buildSessionConfig assembles the session settings, preferring the
// active profile over the environment for gateway endpoints and
// credentials. Tuning knobs always come from the environment.
func buildSessionConfig() (session.Config, error) {
	cfg := session.Config{
		ChatURL:           config.Cfg.ChatURL,
		ShellURL:          config.Cfg.ShellURL,
		AuthToken:         config.Cfg.AuthToken,
		AuthInFrame:       config.Cfg.AuthInFrame,
		HeartbeatInterval: parseDurationOr(config.Cfg.HeartbeatInterval, 20*time.Second),
		HeartbeatTimeout:  parseDurationOr(config.Cfg.HeartbeatTimeout, 10*time.Second),
		Reconnect: gwconn.ReconnectPolicy{
			BaseDelay:      parseDurationOr(config.Cfg.ReconnectBase, time.Second),
			MaxDelay:       parseDurationOr(config.Cfg.ReconnectMax, 30*time.Second),
			Multiplier:     config.Cfg.ReconnectMult,
			JitterFraction: config.Cfg.ReconnectJitter,
			MaxRetries:     config.Cfg.ReconnectRetries,
		},
		QueueLimit:     config.Cfg.SendQueueLimit,
		MessageTimeout: parseDurationOr(config.Cfg.MessageTimeout, 30*time.Second),
		TerminalRows:   config.Cfg.TerminalRows,
		TerminalCols:   config.Cfg.TerminalCols,
		Scrollback:     config.Cfg.ScrollbackLines,
		EventSink: func(channel, event, details string) {
			if err := store.AppendConnectionLog(channel, event, details); err != nil {
				log.Printf("WARNING: connection log append: %v", err)
			}
		},
	}

	if name := config.Cfg.Profile; name != "" {
		p, err := store.GetProfile(name)
		if err != nil {
			return session.Config{}, fmt.Errorf("load profile %q: %w", name, err)
		}
		token, err := crypto.Decrypt(p.AuthToken)
		if err != nil {
			return session.Config{}, fmt.Errorf("decrypt token for profile %q: %w", name, err)
		}
		cfg.ChatURL = p.ChatURL
		cfg.ShellURL = p.ShellURL
		cfg.AuthToken = token
		cfg.AuthInFrame = p.AuthInFrame
	}
	return cfg, nil
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
