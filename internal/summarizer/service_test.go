package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSummaryResponse(t *testing.T) {
	content := `{
		"contentType": "meeting",
		"summary": "Sovittiin julkaisupäivä.",
		"keyPoints": ["Julkaisu siirtyy viikolla"],
		"actionItems": ["Matti: päivitä aikataulu"],
		"deadlines": [{"task": "Aikataulu", "person": "Matti", "deadline": "pe 24.1."}]
	}`

	result, err := parseSummaryResponse(content)
	require.NoError(t, err)

	assert.Equal(t, "meeting", result.ContentType)
	assert.Equal(t, "Sovittiin julkaisupäivä.", result.Summary)
	assert.Len(t, result.KeyPoints, 1)
	require.Len(t, result.Deadlines, 1)
	assert.Equal(t, "medium", result.Deadlines[0].Priority, "missing priority defaults to medium")
}

func TestParseSummaryResponseStripsCodeFences(t *testing.T) {
	content := "```json\n{\"summary\": \"Tiivistelmä.\"}\n```"

	result, err := parseSummaryResponse(content)
	require.NoError(t, err)
	assert.Equal(t, "Tiivistelmä.", result.Summary)
	assert.Equal(t, "general", result.ContentType)
}

func TestParseSummaryResponseExtractsEmbeddedJSON(t *testing.T) {
	content := `Tässä on pyytämäsi analyysi: {"summary": "Tiivistelmä.", "keyPoints": []} Toivottavasti tämä auttaa!`

	result, err := parseSummaryResponse(content)
	require.NoError(t, err)
	assert.Equal(t, "Tiivistelmä.", result.Summary)
}

func TestParseSummaryResponseMissingSummary(t *testing.T) {
	_, err := parseSummaryResponse(`{"contentType": "email"}`)
	assert.Error(t, err)
}

func TestParseSummaryResponseNotJSON(t *testing.T) {
	_, err := parseSummaryResponse("En osaa vastata tähän.")
	assert.Error(t, err)
}

func TestParseSummaryResponseCapsLists(t *testing.T) {
	points := make([]string, 10)
	for i := range points {
		points[i] = "kohta"
	}
	deadlines := make([]map[string]string, 8)
	for i := range deadlines {
		deadlines[i] = map[string]string{"task": "t", "deadline": "ma"}
	}
	payload, err := json.Marshal(map[string]interface{}{
		"summary":     "Tiivistelmä.",
		"keyPoints":   points,
		"actionItems": []string{" a ", "", "b", "   "},
		"deadlines":   deadlines,
	})
	require.NoError(t, err)

	result, err := parseSummaryResponse(string(payload))
	require.NoError(t, err)

	assert.Len(t, result.KeyPoints, 6)
	assert.Equal(t, []string{"a", "b"}, result.ActionItems)
	assert.Len(t, result.Deadlines, 5)
}

func TestParseSummaryResponseDropsIncompleteDeadlines(t *testing.T) {
	content := `{
		"summary": "Tiivistelmä.",
		"deadlines": [
			{"task": "", "deadline": "ma"},
			{"task": "Raportti", "deadline": ""},
			{"task": "Raportti", "deadline": "ti", "priority": "high"}
		]
	}`

	result, err := parseSummaryResponse(content)
	require.NoError(t, err)

	require.Len(t, result.Deadlines, 1)
	assert.Equal(t, "high", result.Deadlines[0].Priority)
}

func TestValidTemplate(t *testing.T) {
	assert.True(t, ValidTemplate(TemplateAuto))
	assert.True(t, ValidTemplate(TemplateMeeting))
	assert.True(t, ValidTemplate(TemplateEmail))
	assert.True(t, ValidTemplate(TemplateProject))
	assert.False(t, ValidTemplate("powerpoint"))
	assert.False(t, ValidTemplate(""))
}

func TestRenderSummaryPrompt(t *testing.T) {
	prompt, err := RenderSummaryPrompt("Kokouksen muistiinpanot tähän.", TemplateMeeting)
	require.NoError(t, err)

	assert.Contains(t, prompt, "KOKOUSMUISTIO")
	assert.Contains(t, prompt, "Kokouksen muistiinpanot tähän.")

	// Unknown templates fall back to the auto intro.
	prompt, err = RenderSummaryPrompt("Teksti.", Template("nonsense"))
	require.NoError(t, err)
	assert.Contains(t, prompt, "tunnista automaattisesti")
}

func TestServiceRejectsShortContent(t *testing.T) {
	svc := NewService(NewGroqClient("test-key"), nil, "")

	_, err := svc.Summarize(context.Background(), "lyhyt", TemplateAuto)
	assert.ErrorIs(t, err, ErrContentTooShort)

	_, err = svc.Summarize(context.Background(), "         \n\t  ", TemplateAuto)
	assert.ErrorIs(t, err, ErrContentTooShort)
}

func TestServiceSummarizeEndToEnd(t *testing.T) {
	var gotAuth string
	var gotReq ChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := map[string]interface{}{
			"id":    "chatcmpl-1",
			"model": gotReq.Model,
			"choices": []map[string]interface{}{
				{
					"index": 0,
					"message": map[string]string{
						"role":    "assistant",
						"content": `{"contentType": "meeting", "summary": "Sovittiin aikataulu.", "keyPoints": ["Julkaisu perjantaina"]}`,
					},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := NewGroqClient("test-key")
	client.baseURL = srv.URL
	svc := NewService(client, nil, "llama-3.1-8b-instant")

	result, err := svc.Summarize(context.Background(), "Kokouksessa sovittiin julkaisuaikataulusta.", TemplateMeeting)
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "llama-3.1-8b-instant", gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	assert.True(t, strings.Contains(gotReq.Messages[0].Content, "KOKOUSMUISTIO"))

	assert.Equal(t, "meeting", result.ContentType)
	assert.Equal(t, "Sovittiin aikataulu.", result.Summary)
	assert.Equal(t, []string{"Julkaisu perjantaina"}, result.KeyPoints)
}
