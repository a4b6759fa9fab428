package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer answers every chat completion with content.
func chatServer(t *testing.T, content string, capture *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestPlanActionsBareArray(t *testing.T) {
	content := `[{"selector":"#name","value":"Jo","type":"fill"},{"selector":"#submit","type":"click"}]`
	srv := chatServer(t, content, nil)
	defer srv.Close()

	c := New(srv.URL, "test-key", "model-a", "")
	actions, err := c.PlanActions(context.Background(), "<form></form>", map[string]string{"name": "Jo"})
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, ActionFill, actions[0].Type)
	assert.Equal(t, "#name", actions[0].Selector)
	assert.Equal(t, ActionClick, actions[1].Type)
}

func TestPlanActionsWrappedObject(t *testing.T) {
	content := `{"actions":[{"selector":"#email","value":"a@b.c","type":"fill"}]}`
	srv := chatServer(t, content, nil)
	defer srv.Close()

	c := New(srv.URL, "test-key", "model-a", "")
	actions, err := c.PlanActions(context.Background(), "<form></form>", nil)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "a@b.c", actions[0].Value)
}

func TestPlanActionsStripsFences(t *testing.T) {
	content := "```json\n[{\"selector\":\"#q\",\"value\":\"x\",\"type\":\"fill\"}]\n```"
	srv := chatServer(t, content, nil)
	defer srv.Close()

	c := New(srv.URL, "test-key", "model-a", "")
	actions, err := c.PlanActions(context.Background(), "<form></form>", nil)
	require.NoError(t, err)
	require.Len(t, actions, 1)
}

func TestPlanActionsUsesJSONModeAndModel(t *testing.T) {
	var captured chatRequest
	srv := chatServer(t, `[]`, &captured)
	defer srv.Close()

	c := New(srv.URL, "test-key", "model-a", "model-cheap")
	_, err := c.PlanActions(context.Background(), "<form></form>", nil)
	require.NoError(t, err)

	assert.Equal(t, "model-a", captured.Model)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
}

func TestPingUsesCheapModel(t *testing.T) {
	var captured chatRequest
	srv := chatServer(t, "pong", &captured)
	defer srv.Close()

	c := New(srv.URL, "test-key", "model-a", "model-cheap")
	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, "model-cheap", captured.Model)
	assert.Equal(t, 5, captured.MaxTokens)
}

func TestPingFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "model-a", "")
	assert.Error(t, c.Ping(context.Background()))
}

func TestChatSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "quota exceeded"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "model-a", "")
	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestFindMissingFields(t *testing.T) {
	content := `{"missing_fields":[{"label":"Resume","selector":"#resume","type":"file"}]}`
	srv := chatServer(t, content, nil)
	defer srv.Close()

	c := New(srv.URL, "test-key", "model-a", "")
	fields, err := c.FindMissingFields(context.Background(), "<form></form>")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "Resume", fields[0].Label)
	assert.Equal(t, "file", fields[0].Type)
}

func TestFixDropdownReturnsBareScript(t *testing.T) {
	content := "```javascript\ndocument.querySelector('#c').value = 'US';\n```"
	srv := chatServer(t, content, nil)
	defer srv.Close()

	c := New(srv.URL, "test-key", "model-a", "")
	script, err := c.FixDropdown(context.Background(), "<select id=\"c\"></select>", "#c", "US")
	require.NoError(t, err)
	assert.Equal(t, "document.querySelector('#c').value = 'US';", script)
}

func TestNormalizeActionsAlternateKeys(t *testing.T) {
	data := []byte(`[{"target_selector":"#city","question_label":"Which city?","type":"ask_user"}]`)
	actions, err := normalizeActions(data)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "#city", actions[0].Selector)
	assert.Equal(t, "Which city?", actions[0].Value)
	assert.Equal(t, ActionAskUser, actions[0].Type)
}

func TestNormalizeActionsDropsUntyped(t *testing.T) {
	data := []byte(`[{"selector":"#a","type":"fill"},{"selector":"#b"}]`)
	actions, err := normalizeActions(data)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "#a", actions[0].Selector)
}

func TestNormalizeActionsFirstListField(t *testing.T) {
	data := []byte(`{"plan":[{"selector":"#a","type":"click"}]}`)
	actions, err := normalizeActions(data)
	require.NoError(t, err)
	require.Len(t, actions, 1)
}

func TestNormalizeActionsSkipsNullFields(t *testing.T) {
	// A null-valued field unmarshals into a nil slice without error and
	// must not shadow the real list under another key.
	data := []byte(`{"comment":null,"reasoning":null,"steps":[{"selector":"#a","type":"click"}]}`)
	actions, err := normalizeActions(data)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "#a", actions[0].Selector)
}

func TestNormalizeActionsRejectsGarbage(t *testing.T) {
	_, err := normalizeActions([]byte(`not json`))
	assert.Error(t, err)
}

func TestPlanActionsMentionsFilePath(t *testing.T) {
	var captured chatRequest
	srv := chatServer(t, `[]`, &captured)
	defer srv.Close()

	c := New(srv.URL, "test-key", "model-a", "")
	_, err := c.PlanActions(context.Background(), "<form></form>", map[string]string{
		"uploaded_file_path": "/uploads/cv.pdf",
	})
	require.NoError(t, err)

	require.Len(t, captured.Messages, 2)
	assert.Contains(t, captured.Messages[1].Content, fmt.Sprintf("%q", "/uploads/cv.pdf"))
}
