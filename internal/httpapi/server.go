// Package httpapi exposes ban status, channel snapshots and live channel
// streams over HTTP, alongside health and Prometheus endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgard/chatguard/internal/chatsync"
	"github.com/edgard/chatguard/internal/config"
	"github.com/edgard/chatguard/internal/domain/model"
	"github.com/edgard/chatguard/internal/logger"
	"github.com/edgard/chatguard/internal/telemetry"
)

// Store is the subset of database.Store the API reads from.
type Store interface {
	chatsync.FeedStore
	Ping(ctx context.Context) error
}

// BanResolver answers ban status queries.
type BanResolver interface {
	Resolve(ctx context.Context, userID, channelID string) model.Resolution
}

// Server serves the HTTP API.
type Server struct {
	cfg       config.HTTPConfig
	syncOpts  chatsync.Options
	store     Store
	resolver  BanResolver
	logger    *slog.Logger
	keepAlive time.Duration
}

// NewServer creates the API server. Channel views it opens use the sync
// timeouts from cfg.
func NewServer(cfg *config.Config, store Store, resolver BanResolver, log *slog.Logger) *Server {
	log = logger.OrDiscard(log).With("component", "http_api")
	return &Server{
		cfg:      cfg.HTTP,
		syncOpts: chatsync.Options{
			FetchTimeout:  cfg.Sync.FetchTimeout,
			ResyncBackoff: cfg.Sync.ResyncBackoff,
			Logger:        log,
		},
		store:     store,
		resolver:  resolver,
		logger:    log,
		keepAlive: 15 * time.Second,
	}
}

// Handler returns the routed handler with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/bans/status", s.handleBanStatus)
	mux.HandleFunc("GET /v1/channels/{id}/messages", s.handleMessages)
	mux.HandleFunc("GET /v1/channels/{id}/stream", s.handleStream)
	return s.requestLog(mux)
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP API shutdown incomplete", "error", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("HTTP API stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type banStatusResponse struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id,omitempty"`
	model.Resolution
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleBanStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	channelID := r.URL.Query().Get("channel_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	res := s.resolver.Resolve(r.Context(), userID, channelID)
	resp := banStatusResponse{UserID: userID, ChannelID: channelID, Resolution: res}
	if res.Err != nil {
		resp.Degraded = true
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("id")

	c, err := chatsync.Open(r.Context(), chatsync.NewStoreSource(s.store), channelID, s.syncOpts)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Failed to open channel view", "channel_id", channelID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	defer c.Close()

	writeJSON(w, http.StatusOK, map[string]any{"channel_id": channelID, "messages": c.Messages()})
}

// handleStream pushes the full ordered message list as a Server-Sent Event
// whenever the channel changes. Slow clients only see the latest snapshot.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	channelID := r.PathValue("id")

	c, err := chatsync.Open(ctx, chatsync.NewStoreSource(s.store), channelID, s.syncOpts)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to open channel stream", "channel_id", channelID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	defer c.Close()

	updates := make(chan []model.Message, 1)
	stop := c.OnChange(func(msgs []model.Message) {
		// Keep only the newest snapshot.
		select {
		case <-updates:
		default:
		}
		updates <- msgs
	})
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, c.Messages()); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		case msgs := <-updates:
			if err := writeEvent(w, msgs); err != nil {
				s.logger.DebugContext(ctx, "Stream client went away", "channel_id", channelID, "error", err)
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, msgs []model.Message) error {
	data, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		r = r.WithContext(telemetry.WithRequestID(r.Context(), reqID))
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.DebugContext(r.Context(), "HTTP request handled",
			"method", r.Method, "path", r.URL.Path, "request_id", reqID, "duration", time.Since(start))
	})
}
