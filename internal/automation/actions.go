package automation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"formpilot/internal/models"
	"formpilot/internal/planner"

	pw "github.com/playwright-community/playwright-go"
)

// runAction performs one planned action against whichever frame currently
// holds the selector.
func (r *pageRun) runAction(ctx context.Context, action planner.Action) error {
	frame := r.findFrame(action.Selector)
	if frame == nil && action.Type != planner.ActionAskUser {
		r.run.Log.Warning("Element not found: %s", action.Selector)
		return nil
	}

	switch action.Type {
	case planner.ActionFill:
		return r.fill(ctx, frame, action.Selector, action.Value)
	case planner.ActionClick:
		return r.click(frame, action.Selector)
	case planner.ActionUpload:
		return r.upload(ctx, frame, action.Selector, action.Value)
	case planner.ActionAskUser:
		return r.askUser(ctx, action.Selector, action.Value)
	default:
		r.run.Log.Warning("Unknown action type %q for %s", action.Type, action.Selector)
		return nil
	}
}

// findFrame probes the main frame first, then each subframe, for the
// selector. Nil when no frame has it.
func (r *pageRun) findFrame(selector string) pw.Frame {
	main := r.page.MainFrame()
	if handle, err := main.QuerySelector(selector); err == nil && handle != nil {
		return main
	}
	for _, frame := range r.page.Frames() {
		if handle, err := frame.QuerySelector(selector); err == nil && handle != nil {
			return frame
		}
	}
	return nil
}

func (r *pageRun) fill(ctx context.Context, frame pw.Frame, selector, value string) error {
	if editable, err := frame.IsEditable(selector); err == nil && !editable {
		r.run.Log.Warning("Skipping read-only: %s", selector)
		return nil
	}

	tagName, _ := frame.Evaluate(`sel => {
		const el = document.querySelector(sel);
		return el ? el.tagName : '';
	}`, selector)

	if tagName == "SELECT" {
		return r.selectDropdown(ctx, frame, selector, value)
	}
	return frame.Fill(selector, value)
}

// click performs the action, healing clicks aimed at <option> elements
// into a selectOption on the parent <select> (native option clicks are
// unreliable in headless automation).
func (r *pageRun) click(frame pw.Frame, selector string) error {
	if strings.Contains(strings.ToLower(selector), "option") {
		parentID, _ := frame.Evaluate(`sel => {
			const el = document.querySelector(sel);
			const p = el ? el.closest('select') : null;
			return p ? p.id : null;
		}`, selector)

		var optionValue string
		if handle, err := frame.QuerySelector(selector); err == nil && handle != nil {
			optionValue, _ = handle.GetAttribute("value")
		}

		if id, ok := parentID.(string); ok && id != "" && optionValue != "" {
			if _, err := frame.SelectOption("#"+id, pw.SelectOptionValues{
				Values: &[]string{optionValue},
			}); err == nil {
				r.run.Log.Log(models.LogAction, "Healed click-option to select-option",
					map[string]interface{}{"selector": selector})
				return nil
			}
		}
	}
	return frame.Click(selector)
}

// upload resolves the file path, suspending for user input if it is
// missing or not on disk, then sets it as the input's file list.
func (r *pageRun) upload(ctx context.Context, frame pw.Frame, selector, value string) error {
	path := value
	if _, ok := resolveFile(path); !ok {
		r.run.Log.Warning("Missing file for upload selector: %s. Pausing for user input...", selector)
		answer, err := r.run.Controls.AskUser(ctx, models.InputFile, "Missing File Upload")
		if err != nil {
			return err
		}
		if answer == "" {
			return fmt.Errorf("no file supplied for %s", selector)
		}
		path = answer
		r.run.Log.Success("User provided file: %s. Resuming...", path)
	}

	resolved, ok := resolveFile(path)
	if !ok {
		r.run.Log.Error("File still not found at: %s", path)
		return nil
	}
	if err := frame.SetInputFiles(selector, []string{resolved}); err != nil {
		return fmt.Errorf("set input files: %w", err)
	}
	r.run.Log.Action("Uploaded file: %s", resolved)
	return nil
}

// askUser suspends for a text answer, feeds it into the learning loop,
// then best-effort places it into the originating field. Placement failure
// is a warning only; the answer is already captured for learning.
func (r *pageRun) askUser(ctx context.Context, selector, value string) error {
	r.run.Log.Warning("AI asking user. Selector: %q, Value: %q", selector, value)

	// The plan usually puts the human-readable question in value and the
	// field reference in selector; prefer value for display.
	label := value
	if label == "" {
		label = selector
	}

	answer, err := r.run.Controls.AskUser(ctx, models.InputText, label)
	if err != nil {
		return err
	}
	if answer == "" {
		r.run.Log.Warning("User provided no answer for %q", label)
		return nil
	}

	r.run.Controls.SaveLearned(ctx, label, answer)
	r.run.Log.Success("User provided: %q", answer)

	if r.placeAnswer(selector, answer) {
		r.run.Log.Action("Auto-filled %q successfully", selector)
	} else {
		r.run.Log.Warning("Could not auto-fill field %q with %q. Please check manually.", selector, answer)
	}
	return nil
}

// placeAnswer locates the field for an ask_user answer: treat the selector
// as CSS if it looks like one, else search label elements for the text and
// follow their for attribute.
func (r *pageRun) placeAnswer(selector, answer string) bool {
	if looksLikeSelector(selector) {
		if frame := r.findFrame(selector); frame != nil {
			if err := frame.Fill(selector, answer); err == nil {
				return true
			}
		}
	}

	for _, frame := range r.page.Frames() {
		labels, err := frame.QuerySelectorAll("label")
		if err != nil {
			continue
		}
		for _, lbl := range labels {
			text, err := lbl.InnerText()
			if err != nil {
				continue
			}
			if !strings.Contains(strings.ToLower(text), strings.ToLower(selector)) {
				continue
			}
			forAttr, err := lbl.GetAttribute("for")
			if err != nil || forAttr == "" {
				continue
			}
			if err := frame.Fill("#"+forAttr, answer); err == nil {
				return true
			}
		}
	}
	return false
}

// looksLikeSelector reports whether s is plausibly a CSS selector rather
// than a human-readable label.
func looksLikeSelector(s string) bool {
	return strings.ContainsAny(s, "#.[")
}

// resolveFile checks a path on disk, both as given and relative to the
// working directory, returning the usable absolute path.
func resolveFile(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	if abs, err := filepath.Abs(path); err == nil {
		if _, err := os.Stat(abs); err == nil {
			return abs, true
		}
	}
	if wd, err := os.Getwd(); err == nil {
		joined := filepath.Join(wd, path)
		if _, err := os.Stat(joined); err == nil {
			return joined, true
		}
	}
	return "", false
}
