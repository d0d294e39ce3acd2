package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/referralhub/internal/app/system/httpjson"
	"github.com/dalemusser/referralhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client  *mongo.Client
	Log     *zap.Logger
	started time.Time
}

// NewHandler constructs a health Handler with the Mongo client and logger.
func NewHandler(client *mongo.Client, logger *zap.Logger) *Handler {
	return &Handler{
		Client:  client,
		Log:     logger,
		started: time.Now(),
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "uptimeSeconds":42 }
//
// On DB failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	resp := healthResponse{
		Status:        "ok",
		Database:      "connected",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		w.Header().Set("Retry-After", "1")
		httpjson.Write(w, http.StatusServiceUnavailable, resp)
		return
	}

	httpjson.Write(w, http.StatusOK, resp)
}
