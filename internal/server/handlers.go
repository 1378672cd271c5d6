package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/storage"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/tutor"
)

type answerRequest struct {
	Question string `json:"question"`
	Image    string `json:"image,omitempty"`
}

type updateRequest struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

type updateResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("question received", zap.Int("question_len", len(req.Question)), zap.Bool("image", req.Image != ""))
	ans, err := s.service.Answer(r.Context(), req.Question, req.Image)
	if errors.Is(err, tutor.ErrInvalidInput) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("answer failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.respondJSON(w, http.StatusOK, ans)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	start := strings.TrimSpace(req.StartDate)
	if start == "" {
		start = s.config.Forum.StartDate
	}
	end := strings.TrimSpace(req.EndDate)
	if end == "" {
		end = s.config.Forum.EndDate
	}
	window, err := models.ParseDateWindow(start, end)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("knowledge refresh requested", zap.Stringer("window", window))
	n, err := s.service.RefreshKnowledge(r.Context(), window)
	if err != nil {
		s.logger.Error("knowledge refresh failed", zap.Error(err), zap.Int("stored", n))
		s.respondError(w, http.StatusInternalServerError, "failed to update knowledge base")
		return
	}
	s.respondJSON(w, http.StatusOK, updateResponse{Message: "Knowledge base updated successfully", Count: n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	posts, err := s.stats.CountPosts(ctx)
	if err != nil {
		s.logger.Error("status: count posts failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sections, err := s.stats.CountCourseContent(ctx)
	if err != nil {
		s.logger.Error("status: count course content failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{
		"forum_posts":     posts,
		"course_sections": sections,
	}
	cfg := map[string]any{
		"database_path":   s.config.Storage.DatabasePath,
		"forum_base_url":  s.config.Forum.BaseURL,
		"harvest_mode":    s.config.Forum.Mode,
		"generator_ready": s.config.Generator.APIKey != "",
		"model":           s.config.Generator.Model,
	}
	if s.watcher != nil {
		cfg["course_directories"] = s.watcher.Directories()
	}
	if bytes, err := storage.DiskUsageBytes(s.config.Storage.DatabasePath); err == nil {
		resp["disk_usage_bytes"] = bytes
	}
	resp["config"] = cfg
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
