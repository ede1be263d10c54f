package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kevin07696/tsys-connector/internal/handlers/respond"
	"github.com/kevin07696/tsys-connector/internal/services/ports"
	"github.com/kevin07696/tsys-connector/pkg/middleware"
	"github.com/kevin07696/tsys-connector/pkg/resilience"
	"github.com/kevin07696/tsys-connector/pkg/shutdown"
	"github.com/kevin07696/tsys-connector/pkg/timeutil"
	"go.uber.org/zap"
)

// MaxBatchSize is the largest batch_size a request may ask for
const MaxBatchSize = 1000

// RecurringHandler handles cron job endpoints for recurring contributions
type RecurringHandler struct {
	recurringService ports.RecurringService
	tracker          *shutdown.InFlightTracker
	timeouts         *resilience.TimeoutConfig
	logger           *zap.Logger
	cronSecret       string
	defaultBatchSize int
}

// NewRecurringHandler creates a new recurring cron handler
func NewRecurringHandler(
	recurringService ports.RecurringService,
	tracker *shutdown.InFlightTracker,
	timeouts *resilience.TimeoutConfig,
	logger *zap.Logger,
	cronSecret string,
	defaultBatchSize int,
) *RecurringHandler {
	if defaultBatchSize < 1 || defaultBatchSize > MaxBatchSize {
		defaultBatchSize = 100
	}
	return &RecurringHandler{
		recurringService: recurringService,
		tracker:          tracker,
		timeouts:         timeouts,
		logger:           logger,
		cronSecret:       cronSecret,
		defaultBatchSize: defaultBatchSize,
	}
}

// ProcessRecurringRequest represents the optional request body
type ProcessRecurringRequest struct {
	AsOfDate  *string `json:"as_of_date"` // YYYY-MM-DD, defaults to today
	BatchSize *int    `json:"batch_size"`
}

// BatchErrorResponse describes one series that failed
type BatchErrorResponse struct {
	RecurSeriesID int64  `json:"recur_id"`
	Error         string `json:"error"`
	Retriable     bool   `json:"retriable"`
}

// ProcessRecurringResponse represents the response from a recurring run
type ProcessRecurringResponse struct {
	Success      bool                 `json:"success"`
	Processed    int                  `json:"processed"`
	SuccessCount int                  `json:"success_count"`
	FailureCount int                  `json:"failure_count"`
	Errors       []BatchErrorResponse `json:"errors,omitempty"`
	Messages     []string             `json:"messages,omitempty"`
	ProcessedAt  string               `json:"processed_at"`
}

// ProcessRecurring handles POST /cron/process-recurring
func (h *RecurringHandler) ProcessRecurring(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Recurring cron job triggered",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	)

	if !h.authenticateRequest(r) {
		h.logger.Warn("Unauthorized cron request",
			zap.String("remote_addr", r.RemoteAddr),
		)
		respond.Error(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ProcessRecurringRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
			respond.Error(w, h.logger, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}

	asOf := timeutil.Now()
	if req.AsOfDate != nil {
		parsed, err := timeutil.ParseHostDateTime(*req.AsOfDate)
		if err != nil || parsed.IsZero() {
			respond.Error(w, h.logger, http.StatusBadRequest, "invalid as_of_date, expected YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	batchSize := h.defaultBatchSize
	if req.BatchSize != nil {
		if *req.BatchSize < 1 || *req.BatchSize > MaxBatchSize {
			respond.Error(w, h.logger, http.StatusBadRequest, fmt.Sprintf("batch_size must be between 1 and %d", MaxBatchSize))
			return
		}
		batchSize = *req.BatchSize
	}

	// The batch outlives a dropped cron connection; charges already sent must be reconciled.
	ctx, cancel := h.timeouts.CronContext(context.WithoutCancel(r.Context()))
	defer cancel()

	var (
		summary *ports.BatchSummary
		runErr  error
	)
	started := h.tracker.RunWithContext(ctx, func(ctx context.Context) {
		summary, runErr = h.recurringService.ProcessDue(ctx, asOf, batchSize)
	})
	if !started {
		respond.Error(w, h.logger, http.StatusServiceUnavailable, "shutting down")
		return
	}
	if runErr != nil {
		h.logger.Error("Recurring run failed", zap.Error(runErr))
		respond.DomainError(w, h.logger, runErr)
		return
	}

	resp := toResponse(summary)
	h.logger.Info("Recurring processing completed",
		zap.Int("processed", resp.Processed),
		zap.Int("success", resp.SuccessCount),
		zap.Int("failed", resp.FailureCount),
	)

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusPartialContent
	}
	respond.JSON(w, h.logger, status, resp)
}

func toResponse(summary *ports.BatchSummary) ProcessRecurringResponse {
	resp := ProcessRecurringResponse{
		Success:      summary.FailedCount == 0,
		Processed:    summary.ProcessedCount,
		SuccessCount: summary.SuccessCount,
		FailureCount: summary.FailedCount,
		Messages:     summary.Messages,
		ProcessedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	for _, e := range summary.Errors {
		resp.Errors = append(resp.Errors, BatchErrorResponse{
			RecurSeriesID: e.RecurSeriesID,
			Error:         e.Error,
			Retriable:     e.Retriable,
		})
	}
	return resp
}

// authenticateRequest accepts the cron secret in X-Cron-Secret or as a bearer token
func (h *RecurringHandler) authenticateRequest(r *http.Request) bool {
	if middleware.TokenMatches(r.Header.Get("X-Cron-Secret"), h.cronSecret) {
		return true
	}
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	return len(auth) > len(prefix) && middleware.TokenMatches(auth[len(prefix):], h.cronSecret)
}
