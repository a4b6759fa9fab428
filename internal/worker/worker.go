package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"formpilot/internal/config"
	"formpilot/internal/models"
)

// Worker is the single-threaded polling scheduler that turns PENDING jobs
// into terminal COMPLETED/FAILED jobs. One job is in flight at a time; the
// jobs row is the only synchronization point.
type Worker struct {
	store     Store
	executors map[models.JobType]Executor
	cfg       *config.Config
	stop      chan struct{}

	// Notify, when set, is called after every status change the worker
	// makes (used by the WebSocket hub).
	Notify func(job *models.Job)
}

func New(store Store, executors map[models.JobType]Executor, cfg *config.Config) *Worker {
	return &Worker{
		store:     store,
		executors: executors,
		cfg:       cfg,
		stop:      make(chan struct{}),
	}
}

func (w *Worker) Start() {
	go w.run()
}

func (w *Worker) Stop() {
	close(w.stop)
}

func (w *Worker) run() {
	log.Printf("Worker started. Polling every %s", w.cfg.ClaimInterval)

	for {
		select {
		case <-w.stop:
			return
		case <-time.After(w.cfg.ClaimInterval):
		}

		if err := w.tick(); err != nil {
			// Transient loop-level failure (store unreachable etc.): back
			// off and keep polling. The worker never exits on an error.
			log.Printf("Worker loop error: %v", err)
			select {
			case <-w.stop:
				return
			case <-time.After(w.cfg.ErrorBackoff):
			}
		}
	}
}

// tick claims at most one job and runs it to a terminal state.
func (w *Worker) tick() error {
	ctx := context.Background()

	job, err := w.store.ClaimNextPending(ctx)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	log.Printf("Worker picked up job %s for %s", job.ID, job.URL)
	w.notify(job)
	w.processJob(ctx, job)
	return nil
}

func (w *Worker) processJob(ctx context.Context, job *models.Job) {
	logger := NewJobLogger(w.store, job.ID)

	run := &RunContext{
		Job:      job,
		URL:      job.URL,
		Log:      logger,
		Controls: NewControls(w.store, job.ID, job.ProfileID, logger, w.cfg),
	}

	err := w.dispatch(ctx, run)
	if err != nil {
		logger.Error("Job failed: %v", err)
		if terr := w.store.MarkTerminal(ctx, job.ID, models.StatusFailed); terr != nil {
			log.Printf("Failed to mark job %s FAILED: %v", job.ID, terr)
		}
		job.Status = models.StatusFailed
	} else {
		if terr := w.store.MarkTerminal(ctx, job.ID, models.StatusCompleted); terr != nil {
			log.Printf("Failed to mark job %s COMPLETED: %v", job.ID, terr)
		}
		job.Status = models.StatusCompleted
		log.Printf("Job %s completed", job.ID)
	}
	w.notify(job)
}

func (w *Worker) dispatch(ctx context.Context, run *RunContext) error {
	data, err := w.buildRunData(ctx, run.Job)
	if err != nil {
		return err
	}
	run.Data = data

	jobType := run.Job.Type
	if jobType == "" {
		jobType = models.TypeFormSubmission
	}
	executor, ok := w.executors[jobType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}

	// Honor an operator pause requested before the run started.
	if err := run.Controls.CheckPause(ctx); err != nil {
		return err
	}

	return executor.Run(ctx, run)
}

// buildRunData merges, later wins: profile payload, job custom data, the
// uploaded file path, then the injected context fields.
func (w *Worker) buildRunData(ctx context.Context, job *models.Job) (map[string]string, error) {
	data := make(map[string]string)

	if job.ProfileID != nil {
		profile, err := w.store.GetProfile(ctx, *job.ProfileID)
		if err != nil {
			log.Printf("Profile fetch error for job %s: %v", job.ID, err)
		} else {
			for k, v := range profile.Payload {
				data[k] = v
			}
		}
	}

	for k, v := range job.CustomData.UserData {
		data[k] = v
	}

	if job.FilePath != nil && *job.FilePath != "" {
		data["uploaded_file_path"] = *job.FilePath
	}

	now := time.Now()
	data["job_id"] = job.ID.String()
	if job.ProfileID != nil {
		data["profile_id"] = job.ProfileID.String()
	}
	data["current_date"] = now.Format("2006-01-02")
	data["current_day"] = now.Weekday().String()
	data["current_year"] = fmt.Sprintf("%d", now.Year())

	return data, nil
}

func (w *Worker) notify(job *models.Job) {
	if w.Notify != nil {
		w.Notify(job)
	}
}
