package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a job. Statuses are stored uppercase.
type JobStatus string

const (
	StatusPending      JobStatus = "PENDING"
	StatusProcessing   JobStatus = "PROCESSING"
	StatusPaused       JobStatus = "PAUSED"
	StatusWaitingInput JobStatus = "WAITING_INPUT"
	StatusResuming     JobStatus = "RESUMING"
	StatusCompleted    JobStatus = "COMPLETED"
	StatusFailed       JobStatus = "FAILED"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobType selects which executor runs a job.
type JobType string

const (
	TypeFormSubmission JobType = "FORM_SUBMISSION"
	TypeScraper        JobType = "SCRAPER"
)

type Job struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	URL         string     `db:"url" json:"url"`
	Type        JobType    `db:"job_type" json:"job_type"`
	Status      JobStatus  `db:"status" json:"status"`
	ProfileID   *uuid.UUID `db:"profile_id" json:"profile_id"`
	CustomData  JobExtra   `db:"custom_data" json:"custom_data"`
	FilePath    *string    `db:"file_path" json:"file_path"`
	FormName    string     `db:"form_name" json:"form_name"`
	// Retries is a schema-level extension point; the worker never retries
	// a FAILED job on its own.
	Retries     int        `db:"retries" json:"retries"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	StartedAt   *time.Time `db:"started_at" json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at"`

	// ProfileName is populated by the joined list query only.
	ProfileName *string `db:"profile_name" json:"profile_name,omitempty"`
}
