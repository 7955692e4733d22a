// Entry point for the dashboard feed service: chi router over the
// aggregate fallback chain, with optional bcrypt-protected debug routes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/yingxuan/bayarea-dashboard-sub001/aggregate"
	"github.com/yingxuan/bayarea-dashboard-sub001/aggregate/sources"
)

func main() {
	port := env("PORT", "8090")
	configPath := env("CONFIG_PATH", "config.yaml")
	fetchlogPath := env("FETCHLOG_DB", "db/fetchlog.db")
	newsAPIKey := os.Getenv("NEWSAPI_KEY")
	debugPassword := os.Getenv("DEBUG_PASSWORD")
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := aggregate.LoadConfig(configPath)
	if err != nil {
		slog.Error("load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	flog, err := aggregate.OpenFetchLog(fetchlogPath)
	if err != nil {
		slog.Error("open fetch log", "path", fetchlogPath, "error", err)
		os.Exit(1)
	}
	defer flog.Close()

	svc := aggregate.New(cfg, logger, aggregate.WithFetchLog(flog))
	client := sources.NewClient(sources.Config{NewsAPIKey: newsAPIKey})
	for _, strat := range client.All() {
		if err := svc.Register(strat); err != nil {
			slog.Error("register module", "error", err)
			os.Exit(1)
		}
	}

	// Daily fetch log retention sweep.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := svc.CleanupFetchLog(ctx, 7*24*time.Hour); err != nil {
					slog.Warn("fetch log cleanup", "error", err)
				}
			}
		}
	}()

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/api/feeds/{module}", func(w http.ResponseWriter, r *http.Request) {
		module := chi.URLParam(r, "module")
		payload, err := svc.Get(r.Context(), module, optsFromQuery(r))
		if err != nil {
			if errors.Is(err, aggregate.ErrUnknownModule) {
				writeJSON(w, 404, map[string]string{"error": "unknown module: " + module})
				return
			}
			writeJSON(w, 500, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, 200, payload)
	})

	r.Get("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		results, status := svc.GetAll(r.Context(), optsFromQuery(r))
		writeJSON(w, 200, map[string]any{
			"status":       status,
			"modules":      results,
			"generated_at": time.Now().UTC(),
		})
	})

	// Debug routes only exist when a password is configured.
	if debugPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(debugPassword), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("hash debug password", "error", err)
			os.Exit(1)
		}

		r.Route("/debug", func(r chi.Router) {
			r.Use(requireDebugAuth(hash))

			r.Get("/fetchlog", func(w http.ResponseWriter, r *http.Request) {
				limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
				entries, err := svc.RecentFetchAttempts(r.Context(), r.URL.Query().Get("module"), limit)
				if err != nil {
					writeJSON(w, 500, map[string]string{"error": err.Error()})
					return
				}
				writeJSON(w, 200, map[string]any{"entries": entries})
			})

			r.Get("/cache", func(w http.ResponseWriter, _ *http.Request) {
				type keyInfo struct {
					Key       string    `json:"key"`
					Items     int       `json:"items"`
					WrittenAt time.Time `json:"written_at"`
				}
				var keys []keyInfo
				for _, k := range svc.CacheKeys() {
					items, writtenAt, ok := svc.CacheSnapshot(k)
					if !ok {
						continue
					}
					keys = append(keys, keyInfo{Key: k, Items: len(items), WrittenAt: writtenAt})
				}
				writeJSON(w, 200, map[string]any{"keys": keys})
			})
		})
	}

	// HTTP server.
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port, "modules", svc.Modules())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func optsFromQuery(r *http.Request) aggregate.GetOptions {
	return aggregate.GetOptions{
		NoCache: r.URL.Query().Get("nocache") == "1",
		Debug:   r.URL.Query().Get("debug") == "1",
	}
}

// requireDebugAuth gates the debug routes with Basic auth against the
// bcrypt hash of DEBUG_PASSWORD.
func requireDebugAuth(hash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, password, ok := r.BasicAuth()
			if !ok || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
				writeJSON(w, 401, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
