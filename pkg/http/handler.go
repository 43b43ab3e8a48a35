package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"gridsync/pkg/config"
	"gridsync/pkg/logger"
	"gridsync/pkg/publisher"
	"gridsync/pkg/results"
	"gridsync/pkg/shared"
)

type HTTPHandler struct {
	publisher *publisher.Publisher
	results   *results.Store
	logger    *logger.Logger
}

type TransferRequest struct {
	SourceEndpoint           string            `json:"source_endpoint"`
	DestinationEndpoint      string            `json:"destination_endpoint"`
	Paths                    []shared.PathPair `json:"paths"`
	IntervalSeconds          int               `json:"interval_seconds,omitempty"`
	InactivityTimeoutSeconds int               `json:"inactivity_timeout_seconds,omitempty"`
	Retries                  *int              `json:"retries,omitempty"`
}

type TransferResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewHTTPHandler(config *config.Config, results *results.Store) (*HTTPHandler, error) {
	pub, err := publisher.NewPublisher(config)
	if err != nil {
		return nil, err
	}

	return &HTTPHandler{
		publisher: pub,
		results:   results,
		logger:    logger.NewDefault(),
	}, nil
}

func (h *HTTPHandler) Close() {
	if h.publisher != nil {
		h.publisher.Close()
	}
}

// TransfersHandler enqueues a transfer job: POST /transfers.
func (h *HTTPHandler) TransfersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	jobID, err := h.publisher.PublishTransferTask(&shared.TransferPayload{
		SourceEndpoint:           req.SourceEndpoint,
		DestinationEndpoint:      req.DestinationEndpoint,
		Paths:                    req.Paths,
		IntervalSeconds:          req.IntervalSeconds,
		InactivityTimeoutSeconds: req.InactivityTimeoutSeconds,
		Retries:                  req.Retries,
	})
	if err != nil {
		if strings.Contains(err.Error(), "required") || strings.Contains(err.Error(), "incomplete") {
			h.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to publish transfer task", err, map[string]any{
			"source":      req.SourceEndpoint,
			"destination": req.DestinationEndpoint,
		})
		h.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("transfer published via HTTP", map[string]any{
		"job_id": jobID,
	})

	h.sendJSON(w, http.StatusAccepted, TransferResponse{
		Success: true,
		JobID:   jobID,
	})
}

// OutcomeHandler looks up the stored outcome of a job: GET /transfers/{id}.
func (h *HTTPHandler) OutcomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/transfers/")
	if jobID == "" {
		h.sendError(w, http.StatusBadRequest, "job id is required")
		return
	}

	outcome, err := h.results.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, results.ErrNotFound) {
			h.sendError(w, http.StatusNotFound, "no outcome for job id")
			return
		}
		h.logger.Error("failed to fetch transfer outcome", err, map[string]any{
			"job_id": jobID,
		})
		h.sendError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.sendJSON(w, http.StatusOK, outcome)
}

func (h *HTTPHandler) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) sendJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", err, nil)
	}
}

func (h *HTTPHandler) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, TransferResponse{
		Success: false,
		Error:   message,
	})
}
