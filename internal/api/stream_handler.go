package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/talentforge/talentforge-api/internal/api/shared"
	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/redact"
	"github.com/talentforge/talentforge-api/internal/service"
)

// defaultPollInterval is how often the stream checks the job for changes.
const defaultPollInterval = time.Second

// StreamHandler pushes job progress over a websocket. The stream sends
// one frame immediately, then a frame for every observed change, and
// closes once the job reaches a terminal status.
type StreamHandler struct {
	jobService   service.JobService
	upgrader     websocket.Upgrader
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewStreamHandler creates a StreamHandler. A non-positive pollInterval
// falls back to the default.
func NewStreamHandler(jobService service.JobService, pollInterval time.Duration, logger *slog.Logger) *StreamHandler {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &StreamHandler{
		jobService: jobService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Token auth happens in the middleware chain; the origin
			// check adds nothing for non-browser clients.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pollInterval: pollInterval,
		logger:       logger.With(slog.String("component", "stream_handler")),
	}
}

// StreamProgress handles GET /api/jobs/{id}/stream requests.
func (h *StreamHandler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}
	jobID, ok := requestJobID(w, r)
	if !ok {
		return
	}

	// Verify the job exists before upgrading so the client gets a
	// proper HTTP status instead of an immediate close frame.
	details, err := h.jobService.GetJob(r.Context(), userID, jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Debug("websocket upgrade failed", "error", redact.Error(err), "job_id", jobID)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			h.logger.Debug("websocket close failed", "error", redact.Error(err))
		}
	}()

	// Reader goroutine: the client never sends data frames, but reading
	// is required to notice close frames.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	last := progressUpdate(details.Job)
	if err := conn.WriteJSON(last); err != nil {
		return
	}
	if details.Job.Status.IsTerminal() {
		h.writeClose(conn)
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-clientGone:
			return
		case <-ticker.C:
		}

		details, err := h.jobService.GetJob(r.Context(), userID, jobID)
		if err != nil {
			if errors.Is(err, service.ErrJobNotFound) {
				// Deleted mid-stream.
				h.writeClose(conn)
				return
			}
			h.logger.Warn("progress poll failed", "error", redact.Error(err), "job_id", jobID)
			continue
		}

		update := progressUpdate(details.Job)
		if update == last {
			continue
		}
		last = update
		if err := conn.WriteJSON(update); err != nil {
			return
		}
		if details.Job.Status.IsTerminal() {
			h.writeClose(conn)
			return
		}
	}
}

func (h *StreamHandler) writeClose(conn *websocket.Conn) {
	deadline := time.Now().Add(time.Second)
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, message, deadline); err != nil {
		h.logger.Debug("websocket close frame failed", "error", redact.Error(err))
	}
}

func progressUpdate(job *domain.Job) ProgressUpdate {
	return ProgressUpdate{
		JobID:              job.ID.String(),
		Status:             string(job.Status),
		ProgressPercentage: job.ProgressPercentage,
		CurrentStep:        job.CurrentStep,
		ErrorMessage:       job.ErrorMessage,
		UpdatedAt:          job.UpdatedAt,
	}
}
