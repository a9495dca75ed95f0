package api

import (
	"encoding/json"
	"net/http"

	"github.com/lusohub/expressions-maker-a22311749/internal/runner"
	"github.com/lusohub/expressions-maker-a22311749/internal/service"
)

// Consumer is the lifecycle surface of the queue receive loop.
type Consumer interface {
	Start() bool
	Stop() bool
	Status() runner.Status
}

type StatsProvider interface {
	Stats() service.Stats
}

type Handler struct {
	consumer Consumer
	stats    StatsProvider
}

func NewHandler(c Consumer, s StatsProvider) *Handler {
	return &Handler{consumer: c, stats: s}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) ConsumerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.consumer.Status())
}

func (h *Handler) ConsumerStart(w http.ResponseWriter, r *http.Request) {
	h.consumer.Start()
	writeJSON(w, http.StatusOK, h.consumer.Status())
}

func (h *Handler) ConsumerStop(w http.ResponseWriter, r *http.Request) {
	h.consumer.Stop()
	writeJSON(w, http.StatusOK, h.consumer.Status())
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
