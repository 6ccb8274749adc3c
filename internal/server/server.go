package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jo-hoe/clipcast/internal/clips"
	"github.com/jo-hoe/clipcast/internal/common"
	"github.com/jo-hoe/clipcast/internal/config"
	"github.com/jo-hoe/clipcast/internal/storage"
)

type Service struct {
	Log       *slog.Logger
	Cfg       *config.Config
	Store     clips.Store
	Artifacts storage.ArtifactStore
	AudioDir  string // directory served under /audio
}

// NewHTTPServer builds the http.Server with routes and middleware.
func NewHTTPServer(svc *Service) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(http.MethodGet+" "+common.PathHealthz, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc(http.MethodPost+" "+common.PathClips, svc.withCommon(svc.handleCreateClip))
	mux.HandleFunc(http.MethodGet+" "+common.PathClips, svc.withCommon(svc.handleListClips))
	// Pattern match /v1/clips/{id} and /v1/clips/{id}/favorite
	mux.HandleFunc(http.MethodGet+" "+common.PathClips+"/", svc.withCommon(svc.handleGetClipByPrefix))
	mux.HandleFunc(http.MethodPatch+" "+common.PathClips+"/", svc.withCommon(svc.handleToggleFavoriteByPrefix))
	mux.HandleFunc(http.MethodDelete+" "+common.PathClips+"/", svc.withCommon(svc.handleDeleteClipByPrefix))

	// Stored audio artifacts
	fileServer := http.FileServer(http.Dir(svc.AudioDir))
	mux.Handle(http.MethodGet+" "+common.PathAudio+"/", http.StripPrefix(common.PathAudio+"/", fileServer))

	s := &http.Server{
		Addr:         svc.Cfg.Server.Addr,
		Handler:      loggingMiddleware(recoveryMiddleware(mux), svc.Log),
		ReadTimeout:  svc.Cfg.Server.ReadTimeout,
		WriteTimeout: svc.Cfg.Server.WriteTimeout,
		IdleTimeout:  svc.Cfg.Server.IdleTimeout,
	}
	return s
}

func (svc *Service) withCommon(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Enforce API key if configured
		if key := strings.TrimSpace(svc.Cfg.Server.APIKey); key != "" {
			if r.Header.Get(common.HeaderAPIKey) != key {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	}
}

type createClipRequest struct {
	InputType          string  `json:"input_type"`
	InputContent       string  `json:"input_content"`
	TargetDuration     int     `json:"target_duration"`
	ContextInstruction *string `json:"context_instruction,omitempty"`
}

func (svc *Service) handleCreateClip(w http.ResponseWriter, r *http.Request) {
	var req createClipRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	clip, err := buildClip(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := svc.Store.Create(r.Context(), clip); err != nil {
		svc.Log.Error("persist clip", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	svc.Log.Info("clip created", "clip_id", clip.ID, "input_type", clip.InputType)

	writeJSON(w, http.StatusCreated, clipToOut(clip))
}

// buildClip validates the request and constructs a pending clip. Validation
// here is the contract the pipeline relies on: a clip that reaches the worker
// always has a known input type, non-empty content, and a valid duration.
func buildClip(req createClipRequest) (*clips.Clip, error) {
	inputType := clips.InputType(strings.TrimSpace(req.InputType))
	if inputType != clips.InputURL && inputType != clips.InputNote {
		return nil, fmt.Errorf("input_type must be %q or %q", clips.InputURL, clips.InputNote)
	}

	content := strings.TrimSpace(req.InputContent)
	if content == "" {
		return nil, errors.New("input_content is required")
	}
	if len(content) > common.MaxInputContentChars {
		return nil, fmt.Errorf("input_content exceeds %d characters", common.MaxInputContentChars)
	}
	if inputType == clips.InputURL {
		u, err := url.ParseRequestURI(content)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, errors.New("input_content must be a valid http(s) url")
		}
	}

	if !clips.ValidTargetDuration(req.TargetDuration) {
		return nil, fmt.Errorf("target_duration must be one of %v", clips.TargetDurations)
	}

	var instruction *string
	if req.ContextInstruction != nil {
		v := strings.TrimSpace(*req.ContextInstruction)
		if len(v) > common.MaxContextChars {
			return nil, fmt.Errorf("context_instruction exceeds %d characters", common.MaxContextChars)
		}
		if v != "" {
			instruction = &v
		}
	}

	return &clips.Clip{
		ID:                 uuid.NewString(),
		InputType:          inputType,
		InputContent:       content,
		ContextInstruction: instruction,
		TargetDuration:     req.TargetDuration,
		Status:             clips.StatusPending,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

func (svc *Service) handleListClips(w http.ResponseWriter, r *http.Request) {
	filter := clips.ListFilter{Limit: common.DefaultListLimit}

	if v := r.URL.Query().Get("status"); v != "" {
		st := clips.Status(v)
		switch st {
		case clips.StatusPending, clips.StatusProcessing, clips.StatusCompleted, clips.StatusFailed:
			filter.Status = &st
		default:
			http.Error(w, "invalid status filter", http.StatusBadRequest)
			return
		}
	}
	if v := r.URL.Query().Get("favorited"); v != "" {
		fav, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid favorited filter", http.StatusBadRequest)
			return
		}
		filter.Favorited = &fav
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > common.MaxListLimit {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid offset", http.StatusBadRequest)
			return
		}
		filter.Offset = n
	}

	list, total, err := svc.Store.List(r.Context(), filter)
	if err != nil {
		svc.Log.Error("list clips", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(list))
	for _, c := range list {
		out = append(out, clipToOut(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"clips": out, "total": total})
}

var (
	clipIDPattern       = regexp.MustCompile(fmt.Sprintf("^%s/([a-f0-9-]+)$", common.PathClips))
	clipFavoritePattern = regexp.MustCompile(fmt.Sprintf("^%s/([a-f0-9-]+)/favorite$", common.PathClips))
)

func (svc *Service) handleGetClipByPrefix(w http.ResponseWriter, r *http.Request) {
	m := clipIDPattern.FindStringSubmatch(r.URL.Path)
	if len(m) != 2 {
		http.NotFound(w, r)
		return
	}
	clip, err := svc.Store.Get(r.Context(), m[1])
	if err != nil {
		if errors.Is(err, clips.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		svc.Log.Error("get clip", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, clipToOut(clip))
}

func (svc *Service) handleToggleFavoriteByPrefix(w http.ResponseWriter, r *http.Request) {
	m := clipFavoritePattern.FindStringSubmatch(r.URL.Path)
	if len(m) != 2 {
		http.NotFound(w, r)
		return
	}
	clip, err := svc.Store.ToggleFavorite(r.Context(), m[1])
	if err != nil {
		if errors.Is(err, clips.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		svc.Log.Error("toggle favorite", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, clipToOut(clip))
}

func (svc *Service) handleDeleteClipByPrefix(w http.ResponseWriter, r *http.Request) {
	m := clipIDPattern.FindStringSubmatch(r.URL.Path)
	if len(m) != 2 {
		http.NotFound(w, r)
		return
	}
	id := m[1]

	clip, err := svc.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, clips.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		svc.Log.Error("get clip", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Best effort: a missing artifact must not block row deletion.
	if clip.AudioURL != nil {
		if err := svc.Artifacts.Remove(r.Context(), id); err != nil {
			svc.Log.Warn("remove audio artifact", "clip_id", id, "err", err)
		}
	}

	if _, err := svc.Store.Delete(r.Context(), id); err != nil {
		svc.Log.Error("delete clip", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "clip deleted"})
}

func clipToOut(clip *clips.Clip) map[string]any {
	return map[string]any{
		"id":                    clip.ID,
		"input_type":            string(clip.InputType),
		"input_content":         clip.InputContent,
		"context_instruction":   clip.ContextInstruction,
		"target_duration":       clip.TargetDuration,
		"page_title":            clip.PageTitle,
		"generated_script":      clip.GeneratedScript,
		"audio_url":             clip.AudioURL,
		"actual_duration":       clip.ActualDuration,
		"error_message":         clip.ErrorMessage,
		"status":                string(clip.Status),
		"is_favorited":          clip.IsFavorited,
		"created_at":            clip.CreatedAt,
		"started_processing_at": clip.StartedProcessingAt,
		"completed_at":          clip.CompletedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", common.ContentTypeJSON)
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(v)
}

func loggingMiddleware(next http.Handler, log *slog.Logger) http.Handler {
	// Fallback to a discard logger if none provided to avoid nil deref in tests or minimal setups.
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &writeWrap{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(ww, r)
		log.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.code,
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr)
	})
}

type writeWrap struct {
	http.ResponseWriter
	code int
}

func (w *writeWrap) WriteHeader(statusCode int) {
	w.code = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
