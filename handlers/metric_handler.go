package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/DeusGroup/Leadr/internal/types/metric"
	"github.com/DeusGroup/Leadr/services"
)

type MetricHandler struct {
	metricService *services.MetricService
}

func NewMetricHandler(metricService *services.MetricService) *MetricHandler {
	return &MetricHandler{
		metricService: metricService,
	}
}

func (h *MetricHandler) Record(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req metric.RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	m, err := h.metricService.Record(ctx, &req)
	if err != nil {
		log.Printf("Metric record failed: %v", err)
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, m)
}

// BulkRecord accepts up to 500 items per batch. Partial success is the
// normal case: the response carries both the recorded metrics and the
// per-item rejections.
func (h *MetricHandler) BulkRecord(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req struct {
		Metrics []*metric.RecordRequest `json:"metrics"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Metrics) > 500 {
		respondWithError(w, http.StatusBadRequest, "Batch too large, max 500 items")
		return
	}

	result, err := h.metricService.BulkRecord(ctx, req.Metrics)
	if err != nil {
		log.Printf("Bulk record failed: %v", err)
		respondWithServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if len(result.Errors) > 0 {
		status = http.StatusMultiStatus
	}
	respondWithJSON(w, status, result)
}

func (h *MetricHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter, err := parseMetricFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics, err := h.metricService.Query(ctx, filter)
	if err != nil {
		log.Printf("Metric query failed: %v", err)
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, metrics)
}

func parseMetricFilter(r *http.Request) (*metric.QueryFilter, error) {
	filter := &metric.QueryFilter{}
	q := r.URL.Query()

	if v := q.Get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		filter.UserID = &id
	}
	if v := q.Get("leaderboard_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		filter.LeaderboardID = &id
	}
	if v := q.Get("metric_type"); v != "" {
		mt := metric.Type(v)
		filter.MetricType = &mt
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		filter.Offset = offset
	}
	return filter, nil
}

func (h *MetricHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid metric id")
		return
	}

	var req metric.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	m, err := h.metricService.Update(ctx, id, &req)
	if err != nil {
		log.Printf("Metric update failed: %v", err)
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, m)
}

func (h *MetricHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid metric id")
		return
	}

	if err := h.metricService.Delete(ctx, id); err != nil {
		log.Printf("Metric delete failed: %v", err)
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Metric deleted successfully"})
}
