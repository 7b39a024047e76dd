package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kikiluvv/framefinder/internal/descriptor"
	"github.com/kikiluvv/framefinder/internal/products"
	"github.com/kikiluvv/framefinder/internal/store"
)

type frameSearchRequest struct {
	Movie      string            `json:"movie"`
	Descriptor descriptor.Fields `json:"descriptor"`
}

type productSearchRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFrameSearch(w http.ResponseWriter, r *http.Request) {
	var req frameSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	movie := req.Movie
	if movie == "" {
		movie = s.movie
	}
	if movie == "" {
		writeMessage(w, http.StatusBadRequest, "movie is required")
		return
	}

	q, err := req.Descriptor.Descriptor()
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.store.Load(r.Context(), movie)
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "no manifest for "+movie)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("movie", movie).Msg("failed to load manifest")
		writeMessage(w, http.StatusInternalServerError, "failed to load manifest")
		return
	}

	match, err := s.engine.FindBestMatch(q, m)
	if errors.Is(err, descriptor.ErrShapeMismatch) {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("frame search failed")
		writeMessage(w, http.StatusInternalServerError, "frame search failed")
		return
	}
	if match == nil {
		writeMessage(w, http.StatusNotFound, "no results")
		return
	}

	writeJSON(w, http.StatusOK, match)
}

func (s *Server) handleProductSearch(w http.ResponseWriter, r *http.Request) {
	if s.products == nil {
		writeMessage(w, http.StatusServiceUnavailable, "product annotations not loaded")
		return
	}

	var req productSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	results, err := s.products.Search(req.Start, req.End)
	if errors.Is(err, products.ErrNoResults) {
		writeMessage(w, http.StatusNotFound, "No matching products found for the given time range.")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeMessage(w, http.StatusServiceUnavailable, "transcription not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxAudioBytes)
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "missing audio file: "+err.Error())
		return
	}
	defer file.Close()

	text, err := s.transcriber.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		s.logger.Error().Err(err).Str("file", header.Filename).Msg("transcription failed")
		writeMessage(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}
