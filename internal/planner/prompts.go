package planner

const planPromptTemplate = `You are an expert browser automation agent.

TASK:
Generate a JSON list of actions to fill the form below with this data:
%s

%s

REQUIREMENTS:
1. Return strictly a valid JSON object, no markdown. Format:
   {
     "actions": [
        {"selector": "#name", "value": "John", "type": "fill"},
        {"selector": "input[type='file']", "value": "/path/to/file.pdf", "type": "upload"},
        {"selector": "#submit", "type": "click"},
        {"selector": "field_label", "value": "Question for user?", "type": "ask_user"}
     ]
   }
2. Use "fill" to input text.
3. For dropdowns (<select>) use "fill"; the value MUST be the text of the option to select.
4. Use "click" for buttons, checkboxes and radio buttons.
5. For file inputs use "upload" with the provided file path as value.
6. CRITICAL: find the submit button and click it as the VERY LAST action.
7. The data includes "current_date" (YYYY-MM-DD), "current_day" and "current_year".
   Use them for any date field instead of asking the user; convert the format if the
   field expects a different one.
8. MISSING DATA STRATEGY: your goal is to fill EVERY visible field, not only required
   ones. If a visible <input>, <select> or <textarea> needs a value that is missing or
   empty in the data, emit an action of type "ask_user" with "target_selector" set to
   the field's CSS selector and "question_label" set to the human-readable label.
   If an <input type="file"> exists and no file path is available, you MUST emit an
   "upload" action with an empty value. Do not skip optional fields that are visible.

HTML CONTEXT:
%s`

const validatePromptTemplate = `You are a QA agent checking a submitted form.

TASK:
Identify any <input>, <select> or <textarea> that:
1. Is visible
2. Is NOT readonly or disabled
3. Has an empty value (or no file selected for file inputs)
4. Appears to be a meaningful field (e.g. "Address Line 2", "Upload Document")
5. IGNORE hidden fields, search bars and insignificant UI chrome.

CRITICAL: "label" MUST be the visible on-screen text, never the id or selector.

Return strictly JSON:
{
  "missing_fields": [
    { "label": "Address Line 2", "selector": "#addr2", "type": "text" },
    { "label": "Upload Resume", "selector": "input[type='file']", "type": "file" }
  ]
}

HTML:
%s`

const fixDropdownPromptTemplate = `You are a DOM manipulation expert.

PROBLEM:
I am trying to set the value of a dropdown (<select>) to %q, but it is not sticking
or not triggering validation.

HTML CONTEXT:
%s

TASK:
Write a JavaScript snippet to run in the browser console that forces this change.
- Use document.querySelector(%q) to find the element.
- Find the option by text or value and force-set the value.
- Dispatch "change", "input", "click" and "blur" events manually.
- If it looks like a React/Angular component, set the internal value tracker if
  known, or apply standard events aggressively.

OUTPUT:
Return ONLY the raw JavaScript code. No markdown, no surrounding comments.`
