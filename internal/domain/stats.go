package domain

// DashboardStats is the read-only rollup of a user's job queue. It is
// computed from the store on demand and never persisted.
type DashboardStats struct {
	TotalJobs           int            `json:"total_jobs"`
	PendingJobs         int            `json:"pending_jobs"`
	ProcessingJobs      int            `json:"processing_jobs"`
	CompletedJobs       int            `json:"completed_jobs"`
	FailedJobs          int            `json:"failed_jobs"`
	CancelledJobs       int            `json:"cancelled_jobs"`
	JobsByType          map[string]int `json:"jobs_by_type"`
	SuccessRate         float64        `json:"success_rate"`
	AvgProcessingTimeMs *float64       `json:"avg_processing_time_ms,omitempty"`
	AvgQueueWaitTimeMs  *float64       `json:"avg_queue_wait_time_ms,omitempty"`
	RecentJobs          []*Job         `json:"recent_jobs"`
}
