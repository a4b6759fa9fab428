package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"formpilot/internal/models"
	"formpilot/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type JobsHandler struct {
	store     *store.Store
	hub       *Hub
	uploadDir string
}

func NewJobsHandler(s *store.Store, hub *Hub, uploadDir string) *JobsHandler {
	return &JobsHandler{store: s, hub: hub, uploadDir: uploadDir}
}

// ListJobs returns all jobs joined with their profile name, newest first.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListJobs(r.Context())
	if err != nil {
		log.Printf("Failed to list jobs: %v", err)
		http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}

	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CreateJob accepts multipart form data: url, profile_id, custom_data
// (JSON), form_name, job_type and an optional file.
func (h *JobsHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	url := r.FormValue("url")
	if url == "" {
		http.Error(w, "Missing url", http.StatusBadRequest)
		return
	}

	var profileID *uuid.UUID
	if raw := r.FormValue("profile_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "Invalid profile_id", http.StatusBadRequest)
			return
		}
		profileID = &id
	}

	var extra models.JobExtra
	if raw := r.FormValue("custom_data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &extra); err != nil {
			// Free-text custom data is still kept, under a single key.
			extra.Set("raw_input", raw)
		}
	}

	var filePath *string
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		saved, err := h.saveUpload(file, header.Filename)
		if err != nil {
			log.Printf("Failed to save upload: %v", err)
			http.Error(w, "Failed to save uploaded file", http.StatusInternalServerError)
			return
		}
		filePath = &saved
	}

	job, err := h.store.CreateJob(r.Context(), store.CreateJobParams{
		URL:        url,
		Type:       models.JobType(r.FormValue("job_type")),
		ProfileID:  profileID,
		CustomData: extra,
		FilePath:   filePath,
		FormName:   r.FormValue("form_name"),
	})
	if err != nil {
		log.Printf("Failed to create job: %v", err)
		http.Error(w, "Failed to create job", http.StatusInternalServerError)
		return
	}

	h.hub.BroadcastJobUpdate(job)
	writeJSON(w, http.StatusCreated, job)
}

func (h *JobsHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteJob(r.Context(), id); err != nil {
		log.Printf("Failed to delete job %s: %v", id, err)
		http.Error(w, "Failed to delete job", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted successfully"})
}

// ResumeJob is the external half of the suspend/resume handshake: it folds
// the supplied answers (labeled values, a generic response, or a new file)
// into the job and flips the status to RESUMING. The waiting worker
// observes the transition on its next poll.
func (h *JobsHandler) ResumeJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}

	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if job.Status != models.StatusWaitingInput {
		http.Error(w, "Job is not waiting for input", http.StatusConflict)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	text := r.FormValue("response")
	if text == "" {
		text = r.FormValue("text_input")
	}
	answers := parseResumeAnswers(r.FormValue("custom_data"), text)

	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		saved, err := h.saveUpload(file, header.Filename)
		if err != nil {
			log.Printf("Failed to save resume upload: %v", err)
			http.Error(w, "Failed to save uploaded file", http.StatusInternalServerError)
			return
		}
		if err := h.store.SetFilePath(r.Context(), id, saved); err != nil {
			http.Error(w, "Failed to update job", http.StatusInternalServerError)
			return
		}
	}

	if err := h.store.MergeCustomData(r.Context(), id, answers, models.StatusResuming); err != nil {
		log.Printf("Failed to resume job %s: %v", id, err)
		http.Error(w, "Failed to resume job", http.StatusInternalServerError)
		return
	}

	h.notifyStatus(r, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Resumed successfully"})
}

// parseResumeAnswers interprets the resume payload: a JSON object keyed by
// the labels asked, or a plain string stored under the generic fallback.
func parseResumeAnswers(customData, textInput string) map[string]string {
	answers := map[string]string{}
	if customData != "" {
		var parsed map[string]string
		if err := json.Unmarshal([]byte(customData), &parsed); err == nil {
			for k, v := range parsed {
				answers[k] = v
			}
		} else {
			answers[models.UserResponseKey] = customData
		}
	} else if textInput != "" {
		answers[models.UserResponseKey] = textInput
	}
	return answers
}

// PauseJob requests an operator pause; the worker blocks at its next
// checkpoint.
func (h *JobsHandler) PauseJob(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.StatusProcessing, models.StatusPaused, false)
}

// ContinueJob releases an operator pause.
func (h *JobsHandler) ContinueJob(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.StatusPaused, models.StatusProcessing, false)
}

// CancelJob fails a job from the outside; every wait loop in the engine
// observes FAILED and unwinds.
func (h *JobsHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "", models.StatusFailed, true)
}

// RetryJob requeues a terminal job. An explicit operator action; the
// worker itself never retries.
func (h *JobsHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}

	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if !job.Status.Terminal() {
		http.Error(w, "Job is not in a terminal state", http.StatusConflict)
		return
	}

	if err := h.store.Requeue(r.Context(), id); err != nil {
		log.Printf("Failed to requeue job %s: %v", id, err)
		http.Error(w, "Failed to retry job", http.StatusInternalServerError)
		return
	}
	h.notifyStatus(r, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Requeued"})
}

func (h *JobsHandler) GetJobLogs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}
	logs, err := h.store.GetLogs(r.Context(), id)
	if err != nil {
		log.Printf("Failed to get logs for job %s: %v", id, err)
		http.Error(w, "Failed to get logs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// transition guards a status change. With from empty any non-terminal
// state is accepted; terminal sets completed_at too.
func (h *JobsHandler) transition(w http.ResponseWriter, r *http.Request, from, to models.JobStatus, terminal bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}

	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if from != "" && job.Status != from {
		http.Error(w, fmt.Sprintf("Job is %s, expected %s", job.Status, from), http.StatusConflict)
		return
	}
	if from == "" && job.Status.Terminal() {
		http.Error(w, "Job already finished", http.StatusConflict)
		return
	}

	if terminal {
		err = h.store.MarkTerminal(r.Context(), id, to)
	} else {
		err = h.store.UpdateStatus(r.Context(), id, to)
	}
	if err != nil {
		log.Printf("Failed to transition job %s to %s: %v", id, to, err)
		http.Error(w, "Failed to update job", http.StatusInternalServerError)
		return
	}

	h.notifyStatus(r, id)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(to)})
}

func (h *JobsHandler) notifyStatus(r *http.Request, id uuid.UUID) {
	if job, err := h.store.GetJob(r.Context(), id); err == nil {
		h.hub.BroadcastJobUpdate(job)
	}
}

// saveUpload stores an uploaded file under the upload dir with a
// uuid-prefixed name and returns the stored path.
func (h *JobsHandler) saveUpload(file io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return "", err
	}
	name := uuid.New().String() + "-" + filepath.Base(originalName)
	path := filepath.Join(h.uploadDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
