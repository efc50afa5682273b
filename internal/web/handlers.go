package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"tracklistify/internal/identify"
	"tracklistify/internal/pipeline"
	"tracklistify/pkg/utils"
)

type IdentifyRequest struct {
	Input string `json:"input"` // mix URL or server-local path
}

type TrackResponse struct {
	SongName   string          `json:"song_name"`
	Artist     string          `json:"artist"`
	TimeInMix  string          `json:"time_in_mix"`
	Confidence float32         `json:"confidence"`
	Duration   string          `json:"duration"`
	Metadata   *identify.Extra `json:"metadata,omitempty"`
}

type JobResponse struct {
	ID            string          `json:"id"`
	Input         string          `json:"input"`
	Status        JobStatus       `json:"status"`
	SegmentsDone  int             `json:"segments_done"`
	SegmentsTotal int             `json:"segments_total"`
	Error         string          `json:"error,omitempty"`
	Tracks        []TrackResponse `json:"tracks,omitempty"`
	OutputFiles   []string        `json:"output_files,omitempty"`
	CreatedAt     string          `json:"created_at"`
	StartedAt     *string         `json:"started_at,omitempty"`
	CompletedAt   *string         `json:"completed_at,omitempty"`
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Input == "" {
		http.Error(w, "Input is required", http.StatusBadRequest)
		return
	}

	job := s.jobMgr.CreateJob(req.Input, s.config)
	s.logger.Info("Created job %s for: %s", job.ID, req.Input)

	// Run the identification in the background
	go s.processJob(job)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.jobToResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobs := s.jobMgr.ListJobs()
	responses := make([]*JobResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = s.jobToResponse(job)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

func (s *Server) handleJobAction(w http.ResponseWriter, r *http.Request) {
	// Extract job ID from path: /api/jobs/{id} or /api/jobs/{id}/cancel
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	// Handle GET /api/jobs/{id}
	if r.Method == http.MethodGet && len(parts) == 1 {
		job, err := s.jobMgr.GetJob(jobID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.jobToResponse(job))
		return
	}

	// Handle POST /api/jobs/{id}/cancel
	if r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "cancel" {
		job, err := s.jobMgr.GetJob(jobID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		if job.Cancel != nil {
			job.Cancel()
		}

		s.jobMgr.UpdateJob(jobID, func(j *Job) {
			j.Status = StatusCancelled
		})

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
		return
	}

	http.Error(w, "Invalid request", http.StatusBadRequest)
}

func (s *Server) processJob(job *Job) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	s.jobMgr.UpdateJob(job.ID, func(j *Job) {
		j.Cancel = cancel
		j.Status = StatusRunning
	})

	s.logger.Info("Starting job %s", job.ID)

	fail := func(err error) {
		s.logger.Error("Job %s failed: %v", job.ID, err)
		s.jobMgr.UpdateJob(job.ID, func(j *Job) {
			j.Status = StatusFailed
			j.Error = err.Error()
		})
	}

	tempDir, err := utils.CreateTempDir()
	if err != nil {
		fail(err)
		return
	}
	defer utils.Cleanup(tempDir)

	hooks := pipeline.Hooks{
		OnWindowsPlanned: func(total int) {
			s.jobMgr.UpdateJob(job.ID, func(j *Job) {
				j.SegmentsTotal = total
			})
		},
		OnSegment: func(done, total int) {
			s.jobMgr.UpdateJob(job.ID, func(j *Job) {
				j.SegmentsDone = done
			})
		},
	}

	outcome, err := pipeline.Run(ctx, job.Config, s.logger, job.Input, tempDir, hooks)
	if err != nil {
		if ctx.Err() != nil {
			s.jobMgr.UpdateJob(job.ID, func(j *Job) {
				j.Status = StatusCancelled
			})
			return
		}
		fail(err)
		return
	}

	s.jobMgr.UpdateJob(job.ID, func(j *Job) {
		j.Status = StatusCompleted
		j.Results = outcome.Results
		j.OutputFiles = outcome.Files
	})

	s.logger.Info("Job %s completed: %d tracks", job.ID, len(outcome.Results))
}

func (s *Server) jobToResponse(job *Job) *JobResponse {
	resp := &JobResponse{
		ID:            job.ID,
		Input:         job.Input,
		Status:        job.Status,
		SegmentsDone:  job.SegmentsDone,
		SegmentsTotal: job.SegmentsTotal,
		Error:         job.Error,
		OutputFiles:   job.OutputFiles,
		CreatedAt:     job.CreatedAt.Format("2006-01-02 15:04:05"),
	}

	for _, r := range job.Results {
		resp.Tracks = append(resp.Tracks, TrackResponse{
			SongName:   r.Track.SongName,
			Artist:     r.Track.Artist,
			TimeInMix:  r.Track.TimeInMix,
			Confidence: r.Track.Confidence,
			Duration:   r.Track.FormatDuration(),
			Metadata:   r.Extra,
		})
	}

	if job.StartedAt != nil {
		started := job.StartedAt.Format("2006-01-02 15:04:05")
		resp.StartedAt = &started
	}

	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format("2006-01-02 15:04:05")
		resp.CompletedAt = &completed
	}

	return resp
}
