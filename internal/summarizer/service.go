package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
)

// MinContentLength is the minimum submission size worth summarizing.
const MinContentLength = 10

// ErrContentTooShort is returned for empty or trivially short submissions.
var ErrContentTooShort = errors.New("content is too short to summarize")

// Deadline is one extracted deadline with its owner.
type Deadline struct {
	Task     string `json:"task"`
	Person   string `json:"person"`
	Deadline string `json:"deadline"`
	Priority string `json:"priority"`
}

// StructuredSummary is the extracted result for a submission.
type StructuredSummary struct {
	ContentType      string     `json:"contentType"`
	Summary          string     `json:"summary"`
	KeyPoints        []string   `json:"keyPoints"`
	ActionItems      []string   `json:"actionItems"`
	Deadlines        []Deadline `json:"deadlines,omitempty"`
	PendingDecisions []string   `json:"pendingDecisions,omitempty"`
	ResponseTemplate string     `json:"responseTemplate,omitempty"`
}

// Service generates structured summaries, with a redis-backed result cache
// keyed by content so repeated submissions don't burn LLM calls.
type Service struct {
	groq  *GroqClient
	cache *Cache
	model string
}

// NewService creates a new summarizer service. Cache may be nil.
func NewService(groq *GroqClient, cache *Cache, model string) *Service {
	if model == "" {
		model = DefaultModel
	}
	return &Service{
		groq:  groq,
		cache: cache,
		model: model,
	}
}

// Summarize runs the LLM extraction for a submission.
func (s *Service) Summarize(ctx context.Context, content string, tmpl Template) (*StructuredSummary, error) {
	if len(strings.TrimSpace(content)) < MinContentLength {
		return nil, ErrContentTooShort
	}
	if !ValidTemplate(tmpl) {
		tmpl = TemplateAuto
	}

	if s.cache != nil {
		if cached, err := s.cache.GetSummary(ctx, content, tmpl); err == nil && cached != nil {
			return cached, nil
		}
	}

	prompt, err := RenderSummaryPrompt(content, tmpl)
	if err != nil {
		return nil, err
	}

	req := &ChatRequest{
		Model:       s.model,
		Temperature: 0.3,
		MaxTokens:   1500,
		Messages: []ChatMessage{
			{Role: "user", Content: prompt},
		},
	}

	resp, err := s.groq.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}

	summary, err := parseSummaryResponse(resp.GetMessageContent())
	if err != nil {
		return nil, fmt.Errorf("failed to parse summary response: %w", err)
	}

	if s.cache != nil {
		if cacheErr := s.cache.SetSummary(ctx, content, tmpl, summary); cacheErr != nil {
			log.Printf("[summarizer] Failed to cache summary: %v", cacheErr)
		}
	}

	return summary, nil
}

// parseSummaryResponse parses and sanitizes the JSON response from the LLM.
func parseSummaryResponse(content string) (*StructuredSummary, error) {
	content = cleanJSONResponse(content)

	var result StructuredSummary
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		jsonStr := extractJSON(content)
		if jsonStr == "" {
			return nil, fmt.Errorf("no valid JSON found in response: %w", err)
		}
		if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	}

	if result.ContentType == "" {
		result.ContentType = "general"
	}
	result.Summary = strings.TrimSpace(result.Summary)
	if result.Summary == "" {
		return nil, errors.New("response is missing a summary")
	}

	result.KeyPoints = sanitizeList(result.KeyPoints, 6)
	result.ActionItems = sanitizeList(result.ActionItems, 6)
	result.PendingDecisions = sanitizeList(result.PendingDecisions, 4)
	result.ResponseTemplate = strings.TrimSpace(result.ResponseTemplate)

	deadlines := make([]Deadline, 0, len(result.Deadlines))
	for _, d := range result.Deadlines {
		if d.Task == "" || d.Deadline == "" {
			continue
		}
		if d.Priority == "" {
			d.Priority = "medium"
		}
		deadlines = append(deadlines, d)
		if len(deadlines) == 5 {
			break
		}
	}
	result.Deadlines = deadlines

	return &result, nil
}

// sanitizeList trims entries, drops blanks and caps the list length.
func sanitizeList(items []string, max int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
		if len(out) == max {
			break
		}
	}
	return out
}

// cleanJSONResponse strips markdown code fences from an LLM response.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// extractJSON attempts to extract a JSON object from a string.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || start >= end {
		return ""
	}
	return s[start : end+1]
}
