// Package api exposes the query service over HTTP: feature lookups, region
// hierarchy listings and the paginated bounding-box and zoom-level queries.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/greglum/map-project/internal/core/model"
	"github.com/greglum/map-project/internal/core/observability"
	"github.com/greglum/map-project/internal/core/service"
)

var json = jsoniter.ConfigFastest

// Service is the seam the handlers are written against.
type Service interface {
	ListFeatures(ctx context.Context, island, district string) ([]model.Feature, error)
	GetFeatureByID(ctx context.Context, id string) (*model.Feature, error)
	ListIslands(ctx context.Context) ([]string, error)
	ListDistricts(ctx context.Context, island string) ([]string, error)
	QueryByBoundingBox(ctx context.Context, req model.QueryRequest, tok string) (*model.QueryResponse, error)
	QueryByZoomLevel(ctx context.Context, req model.QueryRequest, tok string) (*model.QueryResponse, error)
	MapFeaturesForBoundingBox(ctx context.Context, req model.QueryRequest) ([]model.MapFeature, error)
}

// New builds the router with all routes and middlewares attached.
func New(logger *slog.Logger, svc Service) chi.Router {
	r := chi.NewRouter()
	r.Use(Recover())
	r.Use(RequestID())
	r.Use(Logging(logger))
	r.Use(CORS())

	h := &handlers{log: logger, svc: svc}

	r.Get("/healthz", liveness)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/features", instrument("/features", h.listFeatures))
	r.Get("/features/{id}", instrument("/features/{id}", h.getFeature))
	r.Get("/islands", instrument("/islands", h.listIslands))
	r.Get("/islands/{island}/districts", instrument("/islands/{island}/districts", h.listDistricts))
	r.Get("/query/bbox", instrument("/query/bbox", h.queryBBox))
	r.Get("/query/zoom", instrument("/query/zoom", h.queryZoom))
	r.Get("/map/bbox", instrument("/map/bbox", h.mapBBox))

	return r
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// instrument wraps a handler with per-route request metrics.
func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// parseQueryRequest reads the shared query parameters. Corners use the
// "lat,lng" form; both must be present for bounding-box routes, which the
// service enforces.
func parseQueryRequest(r *http.Request) (model.QueryRequest, error) {
	q := r.URL.Query()
	var req model.QueryRequest

	if raw := strings.TrimSpace(q.Get("sw")); raw != "" {
		p, err := parsePoint(raw)
		if err != nil {
			return req, fmt.Errorf("invalid sw: %w", err)
		}
		req.Southwest = &p
	}
	if raw := strings.TrimSpace(q.Get("ne")); raw != "" {
		p, err := parsePoint(raw)
		if err != nil {
			return req, fmt.Errorf("invalid ne: %w", err)
		}
		req.Northeast = &p
	}

	if raw := strings.TrimSpace(q.Get("zoom")); raw != "" {
		z, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("invalid zoom: %w", err)
		}
		req.ZoomLevel = z
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("invalid limit: %w", err)
		}
		req.Limit = n
	}

	req.Island = strings.TrimSpace(q.Get("island"))
	req.District = strings.TrimSpace(q.Get("district"))
	req.Detail = model.DetailLevel(strings.TrimSpace(q.Get("detail")))
	return req, nil
}

func parsePoint(raw string) (model.Point, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return model.Point{}, errors.New("expected lat,lng")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.Point{}, fmt.Errorf("lat: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.Point{}, fmt.Errorf("lng: %w", err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return model.Point{}, errors.New("coordinate out of range")
	}
	return model.Point{Lat: lat, Lng: lng}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps service errors onto status codes: client preconditions to
// 400, everything else (backend failures) to 502.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, service.ErrPrecondition) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
