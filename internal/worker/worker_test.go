package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"formpilot/internal/config"
	"formpilot/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store for exercising the worker and the
// lifecycle controls without a database.
type fakeStore struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*models.Job
	profiles map[uuid.UUID]*models.Profile
	pending  []uuid.UUID // claim order
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:     make(map[uuid.UUID]*models.Job),
		profiles: make(map[uuid.UUID]*models.Profile),
	}
}

func (f *fakeStore) addJob(job *models.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
	if job.Status == models.StatusPending {
		f.pending = append(f.pending, job.ID)
	}
}

func (f *fakeStore) setStatus(id uuid.UUID, status models.JobStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id].Status = status
}

func (f *fakeStore) setAnswer(id uuid.UUID, key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id].CustomData.Set(key, value)
}

func (f *fakeStore) ClaimNextPending(ctx context.Context) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil, nil
	}
	id := f.pending[0]
	f.pending = f.pending[1:]
	job := f.jobs[id]
	job.Status = models.StatusProcessing
	now := time.Now()
	job.StartedAt = &now
	copied := *job
	return &copied, nil
}

func (f *fakeStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	copied := *job
	return &copied, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	f.setStatus(id, status)
	return nil
}

func (f *fakeStore) MarkTerminal(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.jobs[id]
	job.Status = status
	now := time.Now()
	job.CompletedAt = &now
	return nil
}

func (f *fakeStore) SetPendingInput(ctx context.Context, id uuid.UUID, typ models.InputType, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.jobs[id]
	job.CustomData.Pending = &models.PendingRequest{Type: typ, Label: label}
	job.Status = models.StatusWaitingInput
	return nil
}

func (f *fakeStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, errors.New("profile not found")
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) MergeProfilePayload(ctx context.Context, id uuid.UUID, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return errors.New("profile not found")
	}
	if p.Payload == nil {
		p.Payload = map[string]string{}
	}
	p.Payload[key] = value
	return nil
}

func (f *fakeStore) AppendLog(ctx context.Context, jobID uuid.UUID, actionType models.LogType, message string, details interface{}) {
}

// stubExecutor records the run it was handed and returns a fixed error.
type stubExecutor struct {
	err error
	run *RunContext
}

func (s *stubExecutor) Run(ctx context.Context, run *RunContext) error {
	s.run = run
	return s.err
}

func testConfig() *config.Config {
	return &config.Config{
		ClaimInterval:      10 * time.Millisecond,
		ErrorBackoff:       10 * time.Millisecond,
		ResumePollInterval: 5 * time.Millisecond,
		ResumeTimeout:      200 * time.Millisecond,
		PausePollInterval:  5 * time.Millisecond,
	}
}

func TestTickCompletesJob(t *testing.T) {
	store := newFakeStore()
	job := &models.Job{ID: uuid.New(), URL: "http://example.com", Type: models.TypeFormSubmission, Status: models.StatusPending}
	store.addJob(job)

	exec := &stubExecutor{}
	w := New(store, map[models.JobType]Executor{models.TypeFormSubmission: exec}, testConfig())

	require.NoError(t, w.tick())

	final, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.NotNil(t, final.CompletedAt)
	require.NotNil(t, exec.run)
	assert.Equal(t, "http://example.com", exec.run.URL)
}

func TestTickFailsJobOnExecutorError(t *testing.T) {
	store := newFakeStore()
	job := &models.Job{ID: uuid.New(), URL: "http://example.com", Status: models.StatusPending}
	store.addJob(job)

	exec := &stubExecutor{err: errors.New("page exploded")}
	w := New(store, map[models.JobType]Executor{models.TypeFormSubmission: exec}, testConfig())

	require.NoError(t, w.tick())

	final, _ := store.GetJob(context.Background(), job.ID)
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.NotNil(t, final.CompletedAt)
}

func TestTickNoPendingJobs(t *testing.T) {
	store := newFakeStore()
	w := New(store, nil, testConfig())
	require.NoError(t, w.tick())
}

func TestDispatchUnknownJobType(t *testing.T) {
	store := newFakeStore()
	job := &models.Job{ID: uuid.New(), URL: "http://example.com", Type: "TELEPORT", Status: models.StatusPending}
	store.addJob(job)

	w := New(store, map[models.JobType]Executor{models.TypeFormSubmission: &stubExecutor{}}, testConfig())
	require.NoError(t, w.tick())

	final, _ := store.GetJob(context.Background(), job.ID)
	assert.Equal(t, models.StatusFailed, final.Status)
}

func TestDispatchDefaultsToFormSubmission(t *testing.T) {
	store := newFakeStore()
	job := &models.Job{ID: uuid.New(), URL: "http://example.com", Status: models.StatusPending}
	store.addJob(job)

	exec := &stubExecutor{}
	w := New(store, map[models.JobType]Executor{models.TypeFormSubmission: exec}, testConfig())
	require.NoError(t, w.tick())

	assert.NotNil(t, exec.run)
}

func TestNotifyCalledOnStatusChanges(t *testing.T) {
	store := newFakeStore()
	job := &models.Job{ID: uuid.New(), URL: "http://example.com", Status: models.StatusPending}
	store.addJob(job)

	var statuses []models.JobStatus
	w := New(store, map[models.JobType]Executor{models.TypeFormSubmission: &stubExecutor{}}, testConfig())
	w.Notify = func(j *models.Job) {
		statuses = append(statuses, j.Status)
	}

	require.NoError(t, w.tick())
	require.Len(t, statuses, 2)
	assert.Equal(t, models.StatusProcessing, statuses[0])
	assert.Equal(t, models.StatusCompleted, statuses[1])
}

func TestBuildRunDataMergeOrder(t *testing.T) {
	store := newFakeStore()
	profileID := uuid.New()
	store.profiles[profileID] = &models.Profile{
		ID:      profileID,
		Name:    "default",
		Payload: map[string]string{"email": "profile@example.com", "company": "Acme"},
	}

	filePath := "/tmp/upload.pdf"
	job := &models.Job{
		ID:        uuid.New(),
		URL:       "http://example.com",
		ProfileID: &profileID,
		CustomData: models.JobExtra{
			UserData: map[string]string{"email": "override@example.com"},
		},
		FilePath: &filePath,
	}

	w := New(store, nil, testConfig())
	data, err := w.buildRunData(context.Background(), job)
	require.NoError(t, err)

	// Job custom data wins over the profile payload.
	assert.Equal(t, "override@example.com", data["email"])
	assert.Equal(t, "Acme", data["company"])
	assert.Equal(t, "/tmp/upload.pdf", data["uploaded_file_path"])
	assert.Equal(t, job.ID.String(), data["job_id"])
	assert.Equal(t, profileID.String(), data["profile_id"])
	assert.Equal(t, time.Now().Format("2006-01-02"), data["current_date"])
	assert.Equal(t, time.Now().Weekday().String(), data["current_day"])
	assert.NotEmpty(t, data["current_year"])
}

func TestBuildRunDataMissingProfileIsNotFatal(t *testing.T) {
	store := newFakeStore()
	gone := uuid.New()
	job := &models.Job{ID: uuid.New(), URL: "http://example.com", ProfileID: &gone}

	w := New(store, nil, testConfig())
	data, err := w.buildRunData(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, job.ID.String(), data["job_id"])
}
