package rest

import "time"

type JobResponse struct {
	ID             string     `json:"id"`
	Owner          string     `json:"owner"`
	Status         string     `json:"status"`
	ScriptPath     string     `json:"scriptPath"`
	DataDir        string     `json:"dataDir"`
	OutputDir      string     `json:"outputDir"`
	SubmittedAt    time.Time  `json:"submittedAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
	AssignedWorker string     `json:"assignedWorker,omitempty"`
	RetryCount     int        `json:"retryCount"`
	Cost           *float64   `json:"cost,omitempty"`
}

type WorkerResponse struct {
	ID              string    `json:"id"`
	Available       bool      `json:"available"`
	CurrentJob      string    `json:"currentJob,omitempty"`
	CompletedJobs   int       `json:"completedJobs"`
	TotalTimeMs     int64     `json:"totalExecutionTimeMs"`
	LoadFactor      float64   `json:"loadFactor"`
	LastHeartbeatAt time.Time `json:"lastHeartbeatAt"`
}

type ListJobsResponse struct {
	Jobs   []JobResponse `json:"jobs"`
	Total  int           `json:"total"`
	Queued int           `json:"queued"`
}

type ListWorkersResponse struct {
	Workers []WorkerResponse `json:"workers"`
	Total   int              `json:"total"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
