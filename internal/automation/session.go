package automation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"formpilot/internal/config"
	"formpilot/internal/models"
	"formpilot/internal/planner"
	"formpilot/internal/worker"

	pw "github.com/playwright-community/playwright-go"
)

// ErrEmptyPlan is returned when the planner produced no usable actions for
// the page; the job fails rather than silently completing.
var ErrEmptyPlan = errors.New("empty action plan")

// Planner is the slice of the AI planner the session consumes.
type Planner interface {
	Ping(ctx context.Context) error
	PlanActions(ctx context.Context, html string, contextData map[string]string) ([]planner.Action, error)
	FindMissingFields(ctx context.Context, html string) ([]planner.MissingField, error)
	FixDropdown(ctx context.Context, elementHTML, selector, value string) (string, error)
}

// Session drives one FORM_SUBMISSION job end to end: connect, extract,
// plan, execute, validate. It is the executor registered for that type.
type Session struct {
	planner Planner
	cfg     *config.Config
}

func New(p Planner, cfg *config.Config) *Session {
	return &Session{planner: p, cfg: cfg}
}

func (s *Session) Run(ctx context.Context, run *worker.RunContext) error {
	// Fail fast: a browser session is pointless without planning capability.
	run.Log.Info("Testing AI connection...")
	if err := s.planner.Ping(ctx); err != nil {
		run.Log.Error("AI connection failed: %v", err)
		return fmt.Errorf("planner unreachable: %w", err)
	}
	run.Log.Success("AI connection valid")

	pwr, err := pw.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pwr.Chromium.Launch(pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(s.cfg.BrowserHeadless),
	})
	if err != nil {
		pwr.Stop()
		return fmt.Errorf("launch browser: %w", err)
	}
	page, err := browser.NewPage()
	if err != nil {
		browser.Close()
		pwr.Stop()
		return fmt.Errorf("open page: %w", err)
	}

	if s.cfg.BrowserKeepOpen {
		// Reference behavior: the session stays open for operator
		// inspection after the job ends.
		defer log.Printf("Browser left open for inspection (job %s)", run.Job.ID)
	} else {
		defer pwr.Stop()
		defer browser.Close()
	}

	r := &pageRun{Session: s, page: page, run: run}
	return r.execute(ctx)
}

// pageRun is the per-job execution state over one open page.
type pageRun struct {
	*Session
	page pw.Page
	run  *worker.RunContext
}

func (r *pageRun) execute(ctx context.Context) error {
	r.run.Log.Info("Navigating to URL...")
	if _, err := r.page.Goto(r.run.URL, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateNetworkidle,
	}); err != nil {
		return fmt.Errorf("navigate to %s: %w", r.run.URL, err)
	}

	content := r.collectContent()

	r.run.Log.Info("Analyzing page with AI...")
	actions, err := r.planner.PlanActions(ctx, content, r.run.Data)
	if err != nil {
		return fmt.Errorf("plan actions: %w", err)
	}
	if len(actions) == 0 {
		r.run.Log.Error("No actions generated by AI")
		return ErrEmptyPlan
	}

	r.run.Log.Log(models.LogInfo, fmt.Sprintf("Executing %d actions", len(actions)),
		map[string]interface{}{"actions": actions})

	for _, action := range actions {
		if err := r.run.Controls.CheckPause(ctx); err != nil {
			return err
		}

		if err := r.runAction(ctx, action); err != nil {
			// Lifecycle errors unwind the whole session; a flaky selector
			// must not abort the job.
			if isLifecycleErr(err) {
				return err
			}
			r.run.Log.Log(models.LogError, fmt.Sprintf("Failed action on %s", action.Selector),
				map[string]interface{}{"error": err.Error()})
		}

		r.page.WaitForTimeout(float64(r.cfg.ActionSettle.Milliseconds()))
	}

	if err := r.validate(ctx); err != nil {
		return err
	}

	r.run.Log.Success("Job completed successfully")
	return nil
}

// collectContent gathers cleaned HTML from every frame, labeled by frame
// URL, capped to bound planner cost.
func (r *pageRun) collectContent() string {
	var content string
	for _, frame := range r.page.Frames() {
		frameContent, err := frame.Content()
		if err != nil {
			continue // cross-origin frames are not readable
		}
		cleaned := CleanHTML(frameContent)
		if len(cleaned) > 50 {
			content += fmt.Sprintf("\n<!-- FRAME: %s -->\n%s", frame.URL(), cleaned)
		}
	}
	return Truncate(content, r.cfg.PlannerHTMLCap)
}

// validate re-checks the page for unfilled fields and pulls the user in
// for each one. Failures here are warnings, never fatal -- except a
// cancellation, which unwinds the job.
func (r *pageRun) validate(ctx context.Context) error {
	r.run.Log.Info("Validating form completeness...")

	html, err := r.page.Content()
	if err != nil {
		r.run.Log.Warning("Could not re-read page for validation: %v", err)
		return nil
	}

	missing, err := r.planner.FindMissingFields(ctx, Truncate(CleanHTML(html), r.cfg.PlannerHTMLCap))
	if err != nil {
		r.run.Log.Warning("Validation check failed: %v", err)
		return nil
	}
	if len(missing) == 0 {
		r.run.Log.Info("Validation passed. All relevant fields appear filled.")
		return nil
	}

	r.run.Log.Warning("Found %d unfilled fields. Asking user...", len(missing))

	for _, field := range missing {
		label := field.Label
		if label == "" {
			label = "Unfilled Field"
		}

		if field.Type == "file" {
			path, err := r.run.Controls.AskUser(ctx, models.InputFile, label)
			if err != nil {
				if isLifecycleErr(err) {
					return err
				}
				r.run.Log.Warning("No file provided for %q: %v", label, err)
				continue
			}
			if resolved, ok := resolveFile(path); ok {
				if err := r.mainFrame().SetInputFiles(field.Selector, []string{resolved}); err != nil {
					r.run.Log.Warning("Could not set late-provided file on %s: %v", field.Selector, err)
				} else {
					r.run.Log.Success("Uploaded late-provided file: %s", label)
				}
			}
			continue
		}

		answer, err := r.run.Controls.AskUser(ctx, models.InputText, label)
		if err != nil {
			if isLifecycleErr(err) {
				return err
			}
			r.run.Log.Warning("No answer for %q: %v", label, err)
			continue
		}
		if answer == "" {
			r.run.Log.Warning("Empty answer for %q, skipping", label)
			continue
		}

		r.run.Controls.SaveLearned(ctx, label, answer)

		if err := r.mainFrame().Fill(field.Selector, answer); err != nil {
			r.run.Log.Warning("Could not auto-fill %s. Please fill manually if needed.", field.Selector)
		} else {
			r.run.Log.Success("Filled %s with user input", label)
		}
	}
	return nil
}

func (r *pageRun) mainFrame() pw.Frame {
	return r.page.MainFrame()
}

func isLifecycleErr(err error) bool {
	return errors.Is(err, worker.ErrInputCancelled) ||
		errors.Is(err, worker.ErrInputTimeout) ||
		errors.Is(err, worker.ErrJobStopped) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
