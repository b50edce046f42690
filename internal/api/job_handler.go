package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/talentforge/talentforge-api/internal/api/shared"
	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/service"
	"github.com/talentforge/talentforge-api/internal/store"
)

// JobHandler handles job queue HTTP requests.
type JobHandler struct {
	jobService service.JobService
	validator  *validator.Validate
	logger     *slog.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobService service.JobService, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		validator:  validator.New(),
		logger:     logger.With(slog.String("component", "job_handler")),
	}
}

// Routes registers the job endpoints on the given router. The router is
// expected to already carry the auth middleware.
func (h *JobHandler) Routes(r chi.Router) {
	r.Post("/", h.CreateJob)
	r.Get("/", h.ListJobs)
	r.Post("/bulk", h.CreateBulk)
	r.Get("/stats/dashboard", h.DashboardStats)
	r.Get("/{id}", h.GetJob)
	r.Put("/{id}", h.UpdateJob)
	r.Delete("/{id}", h.DeleteJob)
	r.Post("/{id}/cancel", h.CancelJob)
	r.Post("/{id}/retry", h.RetryJob)
}

// CreateJob handles POST /api/jobs requests. Accepted jobs are processed
// asynchronously, so success is 202.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var req CreateJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}
	if !domain.IsValidJobType(domain.JobType(req.JobType)) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Unknown job type")
		return
	}

	job, err := h.jobService.CreateJob(r.Context(), userID, createParams(req))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, job)
}

// ListJobs handles GET /api/jobs requests with optional status, type,
// date, and priority filters plus limit/offset pagination.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	filters, err := parseJobFilters(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	jobs, err := h.jobService.ListJobs(r.Context(), userID, filters)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if jobs == nil {
		jobs = []*domain.Job{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, JobListResponse{
		Jobs:   jobs,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
}

// GetJob handles GET /api/jobs/{id} requests, returning the job with its
// pipeline steps and log history.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}
	jobID, ok := requestJobID(w, r)
	if !ok {
		return
	}

	details, err := h.jobService.GetJob(r.Context(), userID, jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, JobDetailResponse{
		Job:   details.Job,
		Steps: details.Steps,
		Logs:  details.Logs,
	})
}

// UpdateJob handles PUT /api/jobs/{id} requests. Only pending jobs accept
// updates.
func (h *JobHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}
	jobID, ok := requestJobID(w, r)
	if !ok {
		return
	}

	var req UpdateJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	job, err := h.jobService.UpdateJob(r.Context(), userID, jobID, service.UpdateJobParams{
		Priority:    req.Priority,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, job)
}

// DeleteJob handles DELETE /api/jobs/{id} requests.
func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}
	jobID, ok := requestJobID(w, r)
	if !ok {
		return
	}

	if err := h.jobService.DeleteJob(r.Context(), userID, jobID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CancelJob handles POST /api/jobs/{id}/cancel requests.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}
	jobID, ok := requestJobID(w, r)
	if !ok {
		return
	}

	// The body is optional; an empty reason gets a default downstream.
	var req CancelJobRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
			return
		}
	}

	job, err := h.jobService.CancelJob(r.Context(), userID, jobID, req.Reason)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, job)
}

// RetryJob handles POST /api/jobs/{id}/retry requests for failed or
// cancelled jobs.
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}
	jobID, ok := requestJobID(w, r)
	if !ok {
		return
	}

	var req RetryJobRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
			return
		}
	}

	job, err := h.jobService.RetryJob(r.Context(), userID, jobID, service.RetryParams{
		ResetRetryCount: req.ResetRetryCount,
		NewPriority:     req.NewPriority,
		ScheduledAt:     req.ScheduledAt,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, job)
}

// CreateBulk handles POST /api/jobs/bulk requests. The batch is accepted
// as a whole; individual entries succeed or fail independently.
func (h *JobHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var req BulkCreateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	batch := make([]service.CreateJobParams, len(req.Jobs))
	for i, item := range req.Jobs {
		batch[i] = createParams(item)
	}

	results, err := h.jobService.CreateBulk(r.Context(), userID, batch)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	response := BulkCreateResponse{
		BatchID: uuid.NewString(),
		Results: make([]BulkItemResponse, len(results)),
	}
	for i, result := range results {
		item := BulkItemResponse{Index: result.Index, Job: result.Job}
		if result.Err != nil {
			item.Error = GetSafeErrorMessage(result.Err)
			response.Failed++
		} else {
			response.Created++
		}
		response.Results[i] = item
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, response)
}

// DashboardStats handles GET /api/jobs/stats/dashboard requests.
func (h *JobHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.jobService.DashboardStats(r.Context(), userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// requestUserID extracts the authenticated user ID placed in the context
// by the auth middleware.
func requestUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return uuid.Nil, false
	}
	return userID, true
}

// requestJobID parses the {id} URL parameter.
func requestJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return uuid.Nil, false
	}
	return jobID, true
}

func createParams(req CreateJobRequest) service.CreateJobParams {
	params := service.CreateJobParams{
		JobType:    domain.JobType(req.JobType),
		Priority:   req.Priority,
		InputData:  req.InputData,
		MaxRetries: req.MaxRetries,
	}
	if req.ScheduledAt != nil {
		params.ScheduledAt = *req.ScheduledAt
	}
	return params
}

// parseJobFilters reads the ListJobs query parameters.
func parseJobFilters(r *http.Request) (store.JobFilters, error) {
	var filters store.JobFilters
	q := r.URL.Query()

	if status := q.Get("status"); status != "" {
		filters.Status = domain.JobStatus(status)
	}
	if jobType := q.Get("job_type"); jobType != "" {
		filters.JobType = domain.JobType(jobType)
	}
	for param, dst := range map[string]*int{
		"limit":        &filters.Limit,
		"offset":       &filters.Offset,
		"priority_min": &filters.PriorityMin,
		"priority_max": &filters.PriorityMax,
	} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return filters, errInvalidQueryParam(param)
		}
		*dst = value
	}
	for param, dst := range map[string]*time.Time{
		"date_from": &filters.DateFrom,
		"date_to":   &filters.DateTo,
	} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		value, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, errInvalidQueryParam(param)
		}
		*dst = value
	}

	return filters, nil
}

type errInvalidQueryParam string

func (e errInvalidQueryParam) Error() string {
	return "Invalid query parameter: " + string(e)
}
