package api

import (
	"context"
	"errors"
	"kvguard/internal/types"
	"net/http"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// Store is the part of store.Client the admin surface reads through.
type Store interface {
	IsConnected(ctx context.Context) bool
	GetString(ctx context.Context, key string) (string, bool, error)
	GetIndex(ctx context.Context, name string) (*types.Index, error)
}

// Config is the part of configcache.Cache the admin surface reads through.
type Config interface {
	Environment() string
	Lookup(ctx context.Context, name, namespace string) (types.ConfigEntry, error)
}

type Handler struct {
	Store  Store
	Config Config
}

func NewHandler(st Store, cfg Config) *Handler {
	return &Handler{
		Store:  st,
		Config: cfg,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /config", h.handleConfig)
	mux.HandleFunc("GET /kv/{key}", h.handleKV)
	mux.HandleFunc("GET /index/{name}", h.handleIndex)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !h.Store.IsConnected(r.Context()) {
		respond(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	respond(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entry, err := h.Config.Lookup(r.Context(), q.Get("name"), q.Get("namespace"))
	switch {
	case err == nil:
		respond(w, http.StatusOK, entry)
	case errors.Is(err, types.ErrNullArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, types.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		log.WithError(err).Error("config lookup failed")
		http.Error(w, "config source unavailable", http.StatusBadGateway)
	}
}

func (h *Handler) handleKV(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	v, found, err := h.Store.GetString(r.Context(), key)
	if err != nil {
		storeError(w, err)
		return
	}
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	respond(w, http.StatusOK, map[string]any{"key": key, "value": v})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	idx, err := h.Store.GetIndex(r.Context(), r.PathValue("name"))
	if err != nil {
		storeError(w, err)
		return
	}
	if idx == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	respond(w, http.StatusOK, idx)
}

func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, types.ErrNullArgument) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.WithError(err).Error("store misconfigured")
	http.Error(w, "store misconfigured", http.StatusInternalServerError)
}

func respond(w http.ResponseWriter, code int, v any) {
	if err := writeJSON(w, code, v); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
