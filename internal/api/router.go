package api

import "net/http"

const serviceName = "client-relay"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("GET /v1/consumer/status", h.ConsumerStatus)
	mux.HandleFunc("POST /v1/consumer/start", h.ConsumerStart)
	mux.HandleFunc("POST /v1/consumer/stop", h.ConsumerStop)

	mux.HandleFunc("GET /v1/stats", h.Stats)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(serviceName))
	})

	return mux
}
