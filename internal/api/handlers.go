package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type handlers struct {
	log *slog.Logger
	svc Service
}

func (h *handlers) listFeatures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	features, err := h.svc.ListFeatures(r.Context(),
		strings.TrimSpace(q.Get("island")), strings.TrimSpace(q.Get("district")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, features)
}

func (h *handlers) getFeature(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, err := h.svc.GetFeatureByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if f == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "feature not found"})
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handlers) listIslands(w http.ResponseWriter, r *http.Request) {
	islands, err := h.svc.ListIslands(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, islands)
}

func (h *handlers) listDistricts(w http.ResponseWriter, r *http.Request) {
	island := chi.URLParam(r, "island")
	districts, err := h.svc.ListDistricts(r.Context(), island)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, districts)
}

func (h *handlers) queryBBox(w http.ResponseWriter, r *http.Request) {
	req, err := parseQueryRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	tok := strings.TrimSpace(r.URL.Query().Get("token"))

	resp, err := h.svc.QueryByBoundingBox(r.Context(), req, tok)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) queryZoom(w http.ResponseWriter, r *http.Request) {
	req, err := parseQueryRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	tok := strings.TrimSpace(r.URL.Query().Get("token"))

	resp, err := h.svc.QueryByZoomLevel(r.Context(), req, tok)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) mapBBox(w http.ResponseWriter, r *http.Request) {
	req, err := parseQueryRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	features, err := h.svc.MapFeaturesForBoundingBox(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, features)
}
