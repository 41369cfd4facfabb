// Package httpd is the web frontend: the JSON-RPC API endpoint, the
// WebSocket notification hub, cover-art delivery and the metrics and health
// endpoints. It talks to the idle loop exclusively through the API and
// response queues.
package httpd

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/artwork"
	"github.com/cadenza-audio/cadenza/internal/config"
	"github.com/cadenza-audio/cadenza/internal/jsonrpc"
	"github.com/cadenza-audio/cadenza/internal/mympd/albumcache"
	"github.com/cadenza-audio/cadenza/internal/queue"
	"github.com/cadenza-audio/cadenza/internal/session"
)

const (
	// maxBodySize bounds API request bodies.
	maxBodySize = 64 * 1024
	// responseTimeout bounds the wait for the idle loop's answer.
	responseTimeout = 16 * time.Second
	// sessionHeader carries the session token of authenticated clients.
	sessionHeader = "X-Cadenza-Session"
)

// Server is the HTTP frontend.
type Server struct {
	cfg      *config.Config
	api      *queue.Queue[*jsonrpc.Request]
	resp     *queue.Queue[*jsonrpc.Response]
	hub      *Hub
	holder   *albumcache.Holder
	sessions *session.Store
	resolver *artwork.Resolver

	// proxyClient fetches remote covers for the cover-cache proxy.
	proxyClient *http.Client

	// nextConnID hands out the positive connection ids used to match
	// responses to waiting handlers.
	nextConnID atomic.Int64

	httpServer *http.Server
}

// New wires the frontend.
func New(cfg *config.Config, api *queue.Queue[*jsonrpc.Request],
	resp *queue.Queue[*jsonrpc.Response], hub *Hub, holder *albumcache.Holder) *Server {
	s := &Server{
		cfg:      cfg,
		api:      api,
		resp:     resp,
		hub:      hub,
		holder:   holder,
		sessions: session.New(),
		resolver: &artwork.Resolver{
			Workdir:    cfg.Workdir,
			MusicDir:   cfg.MusicDirectory,
			CoverNames: cfg.Covers.Names,
			ThumbNames: cfg.Covers.ThumbNames,
			KeepDays:   cfg.Covers.KeepDays,
		},
		proxyClient: &http.Client{Timeout: 10 * time.Second},
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(httprate.LimitByIP(100, time.Second))

	r.Post("/api/{partition}", s.handleAPI)
	r.Get("/ws/{partition}", s.handleWS)

	r.Get("/albumart", s.handleAlbumArt(false))
	r.Get("/albumart-thumb", s.handleAlbumArt(true))
	r.Get("/albumart/{albumId}", s.handleAlbumArtByID)
	r.Get("/playlistart", s.handlePlaylistArt)
	r.Get("/proxy-covercache", s.handleProxyCoverCache)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok\n")
	})
	return r
}

// ListenAndServe blocks until ctx is cancelled, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
		errCh <- s.httpServer.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleAPI decodes one JSON-RPC call, enforces the session scheme, and
// either answers locally (session methods) or forwards to the idle loop and
// waits for the matched response.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	partition := chi.URLParam(r, "partition")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	connID := s.nextConnID.Add(1)
	req, err := jsonrpc.ParseRequest(connID, partition, body)
	if err != nil {
		apiRequests.WithLabelValues("unknown", "invalid").Inc()
		writeResponse(w, jsonrpc.NewError(connID, 0, "", jsonrpc.FacilityGeneral,
			jsonrpc.SeverityError, err.Error(), nil))
		return
	}

	if jsonrpc.IsSessionCmd(req.Cmd) {
		apiRequests.WithLabelValues(req.Method, "local").Inc()
		writeResponse(w, s.handleSessionCmd(r, req))
		return
	}

	if s.cfg.HTTP.Pin != "" && !jsonrpc.IsPublic(req.Cmd) {
		if !s.sessions.Validate(r.Header.Get(sessionHeader)) {
			apiRequests.WithLabelValues(req.Method, "unauthorized").Inc()
			writeResponse(w, jsonrpc.NewError(connID, req.ID, req.Method,
				jsonrpc.FacilitySession, jsonrpc.SeverityError, "Invalid session", nil))
			return
		}
	}

	s.api.Push(req, 0)
	resp, ok := s.resp.Shift(responseTimeout, uint64(connID))
	if !ok {
		apiTimeouts.Inc()
		apiRequests.WithLabelValues(req.Method, "timeout").Inc()
		writeResponse(w, jsonrpc.NewError(connID, req.ID, req.Method,
			jsonrpc.FacilityGeneral, jsonrpc.SeverityError, "Request timed out", nil))
		return
	}
	apiRequests.WithLabelValues(req.Method, "ok").Inc()
	writeResponse(w, resp)
}

// handleSessionCmd serves the session methods against the local store.
func (s *Server) handleSessionCmd(r *http.Request, req *jsonrpc.Request) *jsonrpc.Response {
	switch req.Cmd {
	case jsonrpc.CmdSessionLogin:
		if s.cfg.HTTP.Pin == "" {
			return jsonrpc.NewError(req.ConnID, req.ID, req.Method,
				jsonrpc.FacilitySession, jsonrpc.SeverityWarn, "Session scheme disabled", nil)
		}
		var params struct {
			Pin string `json:"pin"`
		}
		if err := req.BindParams(&params); err != nil ||
			subtle.ConstantTimeCompare([]byte(params.Pin), []byte(s.cfg.HTTP.Pin)) != 1 {
			return jsonrpc.NewError(req.ConnID, req.ID, req.Method,
				jsonrpc.FacilitySession, jsonrpc.SeverityError, "Invalid pin", nil)
		}
		token, err := s.sessions.Create()
		if err != nil {
			return jsonrpc.NewError(req.ConnID, req.ID, req.Method,
				jsonrpc.FacilitySession, jsonrpc.SeverityError, "Cannot create session", nil)
		}
		return jsonrpc.NewResult(req.ConnID, req.ID, req.Method, map[string]any{"session": token})

	case jsonrpc.CmdSessionLogout:
		s.sessions.Remove(r.Header.Get(sessionHeader))
		return jsonrpc.NewResult(req.ConnID, req.ID, req.Method, "ok")

	case jsonrpc.CmdSessionValidate:
		if s.sessions.Validate(r.Header.Get(sessionHeader)) {
			return jsonrpc.NewResult(req.ConnID, req.ID, req.Method, "ok")
		}
		return jsonrpc.NewError(req.ConnID, req.ID, req.Method,
			jsonrpc.FacilitySession, jsonrpc.SeverityError, "Invalid session", nil)
	}
	return jsonrpc.NewError(req.ConnID, req.ID, req.Method,
		jsonrpc.FacilitySession, jsonrpc.SeverityError, "Unknown session method", nil)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	partition := chi.URLParam(r, "partition")
	if s.cfg.HTTP.Pin != "" && !s.sessions.Validate(r.URL.Query().Get("session")) {
		http.Error(w, "invalid session", http.StatusUnauthorized)
		return
	}
	s.hub.serveWS(w, r, partition)
}

func writeResponse(w http.ResponseWriter, resp *jsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(resp.Body)
}
