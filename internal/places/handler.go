package places

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Searcher is the upstream lookup used by Handler.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Place, error)
}

// Handler serves GET /api/places?lat=&lng=[&radius=]. It holds no state
// between requests.
type Handler struct {
	search Searcher
	logger *zap.Logger
}

// NewHandler creates a Handler. A nil logger discards output.
func NewHandler(search Searcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{search: search, logger: logger}
}

// Response is the success body.
type Response struct {
	Places []Place `json:"places"`
}

// ErrorResponse is the failure body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q, msg := parseQuery(r)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
		return
	}

	places, err := h.search.Search(r.Context(), q)
	if err != nil {
		var upstream *UpstreamError
		switch {
		case errors.Is(err, ErrMissingAPIKey):
			h.logger.Error("places proxy misconfigured", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "places API key is not configured"})
		case errors.Is(err, ErrInvalidQuery):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.As(err, &upstream):
			h.logger.Warn("places upstream error", zap.Int("status", upstream.Status))
			writeJSON(w, upstream.Status, ErrorResponse{Error: "places upstream request failed", Details: upstream.Body})
		default:
			h.logger.Error("places lookup failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to fetch places"})
		}
		return
	}

	writeJSON(w, http.StatusOK, Response{Places: places})
}

// parseQuery returns the query or a client-facing error message.
func parseQuery(r *http.Request) (Query, string) {
	v := r.URL.Query()
	rawLat, rawLng := strings.TrimSpace(v.Get("lat")), strings.TrimSpace(v.Get("lng"))
	if rawLat == "" || rawLng == "" {
		return Query{}, "lat and lng query parameters are required"
	}

	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil || !finite(lat) {
		return Query{}, "lat must be a number"
	}
	lng, err := strconv.ParseFloat(rawLng, 64)
	if err != nil || !finite(lng) {
		return Query{}, "lng must be a number"
	}

	q := Query{Lat: lat, Lng: lng}
	if raw := strings.TrimSpace(v.Get("radius")); raw != "" {
		radius, err := strconv.Atoi(raw)
		if err != nil || radius < 1 {
			return Query{}, "radius must be a positive integer"
		}
		q.Radius = radius
	}
	return q, ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
