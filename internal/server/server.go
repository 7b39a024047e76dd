// Package server exposes frame search, product search and transcription
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/framefinder/internal/ai"
	"github.com/kikiluvv/framefinder/internal/products"
	"github.com/kikiluvv/framefinder/internal/query"
	"github.com/kikiluvv/framefinder/internal/store"
)

// MaxAudioBytes bounds uploads to the transcription endpoint.
const MaxAudioBytes = 25 << 20

// Options carries the server's dependencies. Products and Transcriber may
// be nil; the matching endpoints then answer 503.
type Options struct {
	Store       store.Store
	Movie       string
	Products    *products.Document
	Transcriber ai.Transcriber
	Workers     int
}

// Server handles the HTTP API.
type Server struct {
	logger      zerolog.Logger
	store       store.Store
	movie       string
	products    *products.Document
	transcriber ai.Transcriber
	engine      query.Engine
	mux         *http.ServeMux
}

func New(logger zerolog.Logger, opts Options) *Server {
	s := &Server{
		logger:      logger.With().Str("component", "server").Logger(),
		store:       opts.Store,
		movie:       opts.Movie,
		products:    opts.Products,
		transcriber: opts.Transcriber,
		engine:      query.Engine{Workers: opts.Workers},
		mux:         http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/search/frame", s.handleFrameSearch)
	s.mux.HandleFunc("POST /api/search/product", s.handleProductSearch)
	s.mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	return s
}

// ServeHTTP logs every request and dispatches it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", rec.status).
		Dur("elapsed", time.Since(start)).
		Msg("request")
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Str("movie", s.movie).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
