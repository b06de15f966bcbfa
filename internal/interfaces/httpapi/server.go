package httpapi

import (
	"log/slog"
	"net/http"
)

// NewRouter wires the HTTP surface: health, read-side endpoints, and the
// websocket upgrade that hands sessions to the realtime broker.
func NewRouter(
	handler *Handler,
	ws http.HandlerFunc,
	logger *slog.Logger,
	corsAllowedOrigins []string,
) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /api/meets/{code}/summary", handler.MeetSummary)
	mux.HandleFunc("GET /api/meets/{code}/rankings", handler.Rankings)
	mux.HandleFunc("GET /ws", ws)

	return RequestTracing(RequestLogging(logger, CORS(corsAllowedOrigins, recoverPanic(logger, mux))))
}
