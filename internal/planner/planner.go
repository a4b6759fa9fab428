package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to an OpenAI-compatible chat-completions endpoint
// (OpenRouter by default). The engine consumes it through four narrow
// calls: Ping, PlanActions, FindMissingFields and FixDropdown.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	pingModel string
	client    *http.Client
}

func New(baseURL, apiKey, model, pingModel string) *Client {
	if pingModel == "" {
		pingModel = model
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		pingModel: pingModel,
		client:    &http.Client{Timeout: 120 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) chat(ctx context.Context, model string, messages []chatMessage, jsonMode bool, maxTokens int) (string, error) {
	reqBody := chatRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if jsonMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("planner request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read planner response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("planner returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode planner response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("planner error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("planner returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Ping issues a minimal completion against the cheap model to verify the
// planner is reachable before a browser session is started.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.chat(ctx, c.pingModel, []chatMessage{
		{Role: "user", Content: "ping"},
	}, false, 5)
	return err
}

// PlanActions asks the planner for the ordered action list to fill the
// form in html using contextData. The contract: every visible field gets
// an action, unknown values become ask_user, submit comes last.
func (c *Client) PlanActions(ctx context.Context, html string, contextData map[string]string) ([]Action, error) {
	dataJSON, _ := json.MarshalIndent(contextData, "", "  ")

	fileInfo := "No file path was provided. If an <input type=\"file\"> exists, emit an upload action with an empty value so the system can ask the user."
	if contextData["uploaded_file_path"] != "" {
		fileInfo = fmt.Sprintf("A file to upload is available at %q. Look for <input type=\"file\">.", contextData["uploaded_file_path"])
	}

	prompt := fmt.Sprintf(planPromptTemplate, string(dataJSON), fileInfo, html)

	content, err := c.chat(ctx, c.model, []chatMessage{
		{Role: "system", Content: "You are a browser automation assistant returning raw JSON."},
		{Role: "user", Content: prompt},
	}, true, 3000)
	if err != nil {
		return nil, err
	}

	actions, err := normalizeActions([]byte(stripFences(content)))
	if err != nil {
		return nil, fmt.Errorf("parse action plan: %w", err)
	}
	return actions, nil
}

// FindMissingFields asks the planner which visible, editable, meaningful
// fields are still empty after the execution pass.
func (c *Client) FindMissingFields(ctx context.Context, html string) ([]MissingField, error) {
	prompt := fmt.Sprintf(validatePromptTemplate, html)

	content, err := c.chat(ctx, c.model, []chatMessage{
		{Role: "user", Content: prompt},
	}, true, 1000)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		MissingFields []MissingField `json:"missing_fields"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &parsed); err != nil {
		return nil, fmt.Errorf("parse missing fields: %w", err)
	}
	return parsed.MissingFields, nil
}

// FixDropdown requests a targeted recovery script for a dropdown whose
// value did not stick through the native selection protocol. Returns raw
// JavaScript to run in the page context.
func (c *Client) FixDropdown(ctx context.Context, elementHTML, selector, value string) (string, error) {
	prompt := fmt.Sprintf(fixDropdownPromptTemplate, value, elementHTML, selector)

	content, err := c.chat(ctx, c.model, []chatMessage{
		{Role: "system", Content: "You are a coding machine. Return only code."},
		{Role: "user", Content: prompt},
	}, false, 0)
	if err != nil {
		return "", err
	}
	return stripFences(content), nil
}

// stripFences removes markdown code fences the model may wrap output in.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```javascript", "")
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
