package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"formpilot/internal/database"
	"formpilot/internal/models"

	"github.com/google/uuid"
)

// Store owns every query against the jobs/profiles/logs tables. The jobs
// row is the single synchronization point of the engine: claim, pause,
// resume and cancel are all expressed as status transitions on it.
type Store struct {
	db *database.DB
}

func New(db *database.DB) *Store {
	return &Store{db: db}
}

// ClaimNextPending atomically claims the oldest PENDING job and moves it to
// PROCESSING with started_at stamped. Returns (nil, nil) when no job is
// available. FOR UPDATE SKIP LOCKED guarantees at-most-one claimant even
// with multiple worker processes.
func (s *Store) ClaimNextPending(ctx context.Context) (*models.Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	var id uuid.UUID
	err = tx.GetContext(ctx, &id, `
		SELECT id FROM jobs
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select pending job: %w", err)
	}

	var job models.Job
	err = tx.GetContext(ctx, &job, `
		UPDATE jobs SET status = 'PROCESSING', started_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id)
	if err != nil {
		return nil, fmt.Errorf("claim job %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return &job, nil
}

// FailAllProcessing is startup crash recovery: no PROCESSING job survives a
// restart. Jobs in WAITING_INPUT are untouched.
func (s *Store) FailAllProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'FAILED', completed_at = NOW()
		WHERE status = 'PROCESSING'
	`)
	if err != nil {
		return 0, fmt.Errorf("fail stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := s.db.GetContext(ctx, &job, "SELECT * FROM jobs WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	err := s.db.SelectContext(ctx, &jobs, `
		SELECT jobs.*, profiles.name AS profile_name
		FROM jobs
		LEFT JOIN profiles ON jobs.profile_id = profiles.id
		ORDER BY jobs.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	return jobs, nil
}

type CreateJobParams struct {
	URL        string
	Type       models.JobType
	ProfileID  *uuid.UUID
	CustomData models.JobExtra
	FilePath   *string
	FormName   string
}

func (s *Store) CreateJob(ctx context.Context, p CreateJobParams) (*models.Job, error) {
	if p.Type == "" {
		p.Type = models.TypeFormSubmission
	}
	if p.FormName == "" {
		p.FormName = "Untitled Form"
	}
	var job models.Job
	err := s.db.GetContext(ctx, &job, `
		INSERT INTO jobs (url, job_type, profile_id, custom_data, file_path, form_name, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'PENDING')
		RETURNING *
	`, p.URL, p.Type, p.ProfileID, p.CustomData, p.FilePath, p.FormName)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return &job, nil
}

func (s *Store) DeleteJob(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = $1", id)
	return err
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	_, err := s.db.ExecContext(ctx, "UPDATE jobs SET status = $1 WHERE id = $2", status, id)
	return err
}

// MarkTerminal stamps completed_at together with a COMPLETED/FAILED status.
func (s *Store) MarkTerminal(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status = $1, completed_at = NOW() WHERE id = $2", status, id)
	return err
}

// Requeue resets a terminal job to PENDING for another run. A pending
// input request left over from a job that failed out of WAITING_INPUT is
// cleared; the new run asks again if it still needs the answer.
func (s *Store) Requeue(ctx context.Context, id uuid.UUID) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	extra := job.CustomData
	extra.Pending = nil
	_, err = s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'PENDING', custom_data = $1,
			started_at = NULL, completed_at = NULL, retries = retries + 1
		WHERE id = $2
	`, extra, id)
	return err
}

// SetPendingInput records the outstanding input request in custom_data and
// suspends the job. This is the only state the outside world sees while the
// worker waits.
func (s *Store) SetPendingInput(ctx context.Context, id uuid.UUID, typ models.InputType, label string) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	extra := job.CustomData
	extra.Pending = &models.PendingRequest{Type: typ, Label: label}
	_, err = s.db.ExecContext(ctx,
		"UPDATE jobs SET custom_data = $1, status = 'WAITING_INPUT' WHERE id = $2", extra, id)
	return err
}

// MergeCustomData folds answers into custom_data and applies the optional
// status transition in the same write (used by the resume handshake).
func (s *Store) MergeCustomData(ctx context.Context, id uuid.UUID, answers map[string]string, status models.JobStatus) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	extra := job.CustomData
	for k, v := range answers {
		extra.Set(k, v)
	}
	if status != "" {
		_, err = s.db.ExecContext(ctx,
			"UPDATE jobs SET custom_data = $1, status = $2 WHERE id = $3", extra, status, id)
	} else {
		_, err = s.db.ExecContext(ctx,
			"UPDATE jobs SET custom_data = $1 WHERE id = $2", extra, id)
	}
	return err
}

func (s *Store) SetFilePath(ctx context.Context, id uuid.UUID, path string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE jobs SET file_path = $1 WHERE id = $2", path, id)
	return err
}

// --- Profiles ---

func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.GetContext(ctx, &p, "SELECT * FROM profiles WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	var profiles []models.Profile
	err := s.db.SelectContext(ctx, &profiles, "SELECT * FROM profiles ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}
	return profiles, nil
}

func (s *Store) CreateProfile(ctx context.Context, name string, payload models.Payload) (*models.Profile, error) {
	var p models.Profile
	err := s.db.GetContext(ctx, &p, `
		INSERT INTO profiles (name, payload) VALUES ($1, $2) RETURNING *
	`, name, payload)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return &p, nil
}

func (s *Store) UpdateProfilePayload(ctx context.Context, id uuid.UUID, payload models.Payload) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET payload = $1, updated_at = NOW() WHERE id = $2", payload, id)
	return err
}

// MergeProfilePayload upserts one learned answer into a profile. Pure
// last-write-wins; stale keys are never pruned.
func (s *Store) MergeProfilePayload(ctx context.Context, id uuid.UUID, key, value string) error {
	if key == "" || value == "" {
		return nil
	}
	p, err := s.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if p.Payload == nil {
		p.Payload = models.Payload{}
	}
	p.Payload[key] = value
	return s.UpdateProfilePayload(ctx, id, p.Payload)
}

// --- Logs ---

// AppendLog writes one audit entry. Log failures must never take down the
// engine, so errors are reported to the process log and swallowed.
func (s *Store) AppendLog(ctx context.Context, jobID uuid.UUID, actionType models.LogType, message string, details interface{}) {
	var detailsJSON interface{}
	if details != nil {
		b, err := json.Marshal(details)
		if err == nil {
			detailsJSON = b
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (job_id, action_type, message, details) VALUES ($1, $2, $3, $4)
	`, jobID, actionType, message, detailsJSON)
	if err != nil {
		log.Printf("Failed to append log for job %s: %v", jobID, err)
	}
}

func (s *Store) GetLogs(ctx context.Context, jobID uuid.UUID) ([]models.LogEntry, error) {
	var entries []models.LogEntry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM logs WHERE job_id = $1 ORDER BY timestamp ASC", jobID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.LogEntry{}
	}
	return entries, nil
}
