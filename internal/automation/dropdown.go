package automation

import (
	"context"
	"strings"

	"formpilot/internal/models"

	pw "github.com/playwright-community/playwright-go"
)

// optionInfo is one enumerated <option>.
type optionInfo struct {
	Text  string
	Value string
	Index int
}

// matchOption resolves the planner's target value against the enumerated
// options. The priority order is load-bearing: exact text, normalized
// text, normalized substring, exact value, case-insensitive trimmed text.
// First match wins.
func matchOption(options []optionInfo, target string) (optionInfo, bool) {
	normTarget := normalizeText(target)

	for _, o := range options {
		if o.Text == target {
			return o, true
		}
	}
	for _, o := range options {
		if normalizeText(o.Text) == normTarget {
			return o, true
		}
	}
	for _, o := range options {
		if normTarget != "" && strings.Contains(normalizeText(o.Text), normTarget) {
			return o, true
		}
	}
	for _, o := range options {
		if o.Value == target {
			return o, true
		}
	}
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o.Text), strings.TrimSpace(target)) {
			return o, true
		}
	}
	return optionInfo{}, false
}

// normalizeText lowercases, collapses runs of whitespace and trims.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// selectDropdown runs the layered dropdown protocol: enumerate, match,
// double-select to force a change event, dispatch events, and escalate to
// an AI-generated recovery script only when the value did not stick.
func (r *pageRun) selectDropdown(ctx context.Context, frame pw.Frame, selector, value string) error {
	options := r.enumerateOptions(frame, selector)

	match, matched := matchOption(options, value)

	if matched {
		frame.Focus(selector)

		// Select a different option first so the change event fires even
		// if the desired option was already selected.
		for _, o := range options {
			if o.Index != match.Index {
				frame.SelectOption(selector, pw.SelectOptionValues{Indexes: &[]int{o.Index}})
				r.page.WaitForTimeout(200)
				break
			}
		}

		r.run.Log.Action("Selecting option %q (val: %s)", match.Text, match.Value)
		if _, err := frame.SelectOption(selector, pw.SelectOptionValues{
			Values: &[]string{match.Value},
		}); err != nil {
			r.run.Log.Warning("selectOption failed on %s: %v", selector, err)
		}
	} else {
		r.run.Log.Warning("Option match failed. Trying direct selectOption by label: %q", value)
		if _, err := frame.SelectOption(selector, pw.SelectOptionValues{
			Labels: &[]string{value},
		}); err != nil {
			// Last resort: raw value.
			frame.SelectOption(selector, pw.SelectOptionValues{Values: &[]string{value}})
		}
	}

	// Some forms only validate on these events, not on property assignment.
	r.page.WaitForTimeout(100)
	frame.DispatchEvent(selector, "change", nil)
	frame.DispatchEvent(selector, "input", nil)
	frame.Locator(selector).Blur()

	expected := value
	if matched {
		expected = match.Value
	}
	selected := r.readValue(frame, selector)

	// A readback mismatch after a confirmed match means a framework is
	// intercepting the native setter; only then is the AI escalation
	// worth its cost.
	if matched && selected != expected {
		r.run.Log.Warning("Standard methods failed (val: %s vs exp: %s). Asking AI for a custom JS fix...",
			selected, expected)

		elementHTML, _ := frame.Evaluate(`sel => {
			const el = document.querySelector(sel);
			return el ? el.outerHTML : '';
		}`, selector)

		html, _ := elementHTML.(string)
		script, err := r.planner.FixDropdown(ctx, html, selector, value)
		if err != nil {
			r.run.Log.Error("AI recovery script request failed: %v", err)
		} else if script != "" {
			r.run.Log.Log(models.LogAction, "Executing AI-generated fix script",
				map[string]interface{}{"script": script})
			if _, err := frame.Evaluate(`code => { new Function(code)(); }`, script); err != nil {
				r.run.Log.Error("AI script execution failed: %v", err)
			}
		}
	}

	r.run.Log.Info("Final dropdown state: %s", r.readValue(frame, selector))
	return nil
}

func (r *pageRun) enumerateOptions(frame pw.Frame, selector string) []optionInfo {
	result, err := frame.Evaluate(`sel => {
		const select = document.querySelector(sel);
		if (!select || !select.options) return [];
		return Array.from(select.options).map(opt => ({
			text: opt.text.trim(),
			value: opt.value,
			index: opt.index
		}));
	}`, selector)
	if err != nil {
		return nil
	}

	items, ok := result.([]interface{})
	if !ok {
		return nil
	}
	options := make([]optionInfo, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		o := optionInfo{}
		if t, ok := m["text"].(string); ok {
			o.Text = t
		}
		if v, ok := m["value"].(string); ok {
			o.Value = v
		}
		if i, ok := m["index"].(float64); ok {
			o.Index = int(i)
		} else if i, ok := m["index"].(int); ok {
			o.Index = i
		}
		options = append(options, o)
	}
	return options
}

func (r *pageRun) readValue(frame pw.Frame, selector string) string {
	result, err := frame.Evaluate(`sel => {
		const el = document.querySelector(sel);
		return el ? el.value : '';
	}`, selector)
	if err != nil {
		return ""
	}
	s, _ := result.(string)
	return s
}
