// Package classifier turns a raw email into a structured intent plus
// extracted job-application fields by calling a chat-completions LLM
// endpoint. The workflow treats it as an opaque, fallible extraction
// function.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jobhub/inbox-worker/internal/models"
)

const DefaultAPIURL = "https://openrouter.ai/api/v1/chat/completions"

type Client struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
	model      *string // Optional: if nil, uses the provider account default
}

func NewClient(apiKey, apiURL string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		apiKey: apiKey,
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		model: nil,
	}
}

// SetModel sets a specific model to use (optional)
func (c *Client) SetModel(model string) {
	c.model = &model
}

// SetTimeout overrides the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.httpClient.Timeout = d
}

// ParsedEmail is the classifier's structured output.
type ParsedEmail struct {
	Intent           models.EmailIntent
	Company          string
	Role             string
	Status           models.ApplicationStatus
	Location         *string
	SalaryRange      *string
	JobPostingURL    *string
	Notes            *string
	ApplicationID    *string
	EventType        *models.ApplicationEventType
	EventDescription *string
	EventDate        *time.Time
	Confidence       *float64
}

// parsedEmailWire is the raw JSON shape the LLM returns.
type parsedEmailWire struct {
	Intent           string   `json:"intent"`
	Company          string   `json:"company"`
	Role             string   `json:"role"`
	Status           string   `json:"status"`
	Location         *string  `json:"location"`
	SalaryRange      *string  `json:"salary_range"`
	JobPostingURL    *string  `json:"job_posting_url"`
	Notes            *string  `json:"notes"`
	ApplicationID    *string  `json:"application_id"`
	EventType        *string  `json:"event_type"`
	EventDescription *string  `json:"event_description"`
	EventDate        *string  `json:"event_date"`
	Confidence       *float64 `json:"confidence"`
}

// Classify extracts job-application information from an email. Transport
// failures, non-200 responses, and unusable JSON are all returned as errors;
// the caller decides how many times to retry.
func (c *Client) Classify(ctx context.Context, subject, body string) (*ParsedEmail, error) {
	reqBody := map[string]interface{}{
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": c.buildPrompt(subject, body),
			},
		},
	}
	if c.model != nil {
		reqBody["model"] = *c.model
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("no response from LLM")
	}

	cleaned := c.cleanJSONResponse(apiResp.Choices[0].Message.Content)

	var wire parsedEmailWire
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, fmt.Errorf("failed to parse classification JSON: %w", err)
	}

	return buildParsedEmail(wire)
}

// buildParsedEmail validates the wire shape against the closed enum sets and
// converts it into the typed output.
func buildParsedEmail(wire parsedEmailWire) (*ParsedEmail, error) {
	intent := models.EmailIntent(strings.ToUpper(strings.TrimSpace(wire.Intent)))
	if !intent.IsValid() {
		return nil, fmt.Errorf("unrecognized intent %q", wire.Intent)
	}

	parsed := &ParsedEmail{
		Intent:           intent,
		Company:          strings.TrimSpace(wire.Company),
		Role:             strings.TrimSpace(wire.Role),
		Location:         trimPtr(wire.Location),
		SalaryRange:      trimPtr(wire.SalaryRange),
		JobPostingURL:    trimPtr(wire.JobPostingURL),
		Notes:            trimPtr(wire.Notes),
		ApplicationID:    trimPtr(wire.ApplicationID),
		EventDescription: trimPtr(wire.EventDescription),
	}

	if s := strings.TrimSpace(wire.Status); s != "" {
		parsed.Status = models.ApplicationStatus(strings.ToUpper(s))
	}

	if t := trimPtr(wire.EventType); t != nil {
		eventType := models.ApplicationEventType(strings.ToUpper(*t))
		parsed.EventType = &eventType
	}

	if d := trimPtr(wire.EventDate); d != nil {
		eventDate, err := parseEventDate(*d)
		if err == nil {
			parsed.EventDate = &eventDate
		}
		// An unparseable date is dropped rather than failing the whole
		// classification; the mutator falls back to the email timestamp.
	}

	if wire.Confidence != nil {
		conf := *wire.Confidence
		if conf < 0 {
			conf = 0
		} else if conf > 1 {
			conf = 1
		}
		parsed.Confidence = &conf
	}

	return parsed, nil
}

// parseEventDate parses the date formats LLMs commonly emit.
func parseEventDate(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse event date: %s", s)
}

// cleanJSONResponse removes markdown code blocks and extra whitespace from the LLM response
func (c *Client) cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	// Find the first { and last } to extract just the JSON object
	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")

	if startIdx == -1 || endIdx == -1 || startIdx > endIdx {
		// No valid JSON found, return as is and let the JSON parser fail with a proper error
		return content
	}

	return strings.TrimSpace(content[startIdx : endIdx+1])
}

// buildPrompt builds the extraction prompt from the email
func (c *Client) buildPrompt(subject, body string) string {
	return fmt.Sprintf(`You are an AI that classifies job-search emails and extracts structured application data.

Analyze the email below and return a STRICT JSON object.

### OUTPUT FORMAT (STRICT JSON ONLY)

{
  "intent": "",
  "company": "",
  "role": "",
  "status": "",
  "location": null,
  "salary_range": null,
  "job_posting_url": null,
  "notes": null,
  "application_id": null,
  "event_type": null,
  "event_description": null,
  "event_date": null,
  "confidence": 0.0
}

### FIELD DEFINITIONS

intent
- One of: "NEW_APPLICATION" (confirmation of a newly submitted application),
  "APPLICATION_EVENT" (an update about an existing application: assessment,
  interview, offer, rejection, etc.), "GENERAL" (not related to a specific
  job application).

company
- The hiring company's name, inferred only from the text.

role
- The job title the email refers to.

status
- One of: "APPLIED", "ASSESSMENT", "INTERVIEW", "REJECTED", "OFFERED",
  "ACCEPTED", "WITHDRAWN". The application status implied by this email.

location / salary_range / job_posting_url / notes
- Optional extracted details; null when unavailable.

application_id
- An application reference id when the email quotes one; otherwise null.

event_type
- Required when intent is APPLICATION_EVENT. One of: "APPLICATION_SUBMITTED",
  "APPLICATION_RECEIVED", "APPLICATION_VIEWED", "APPLICATION_REVIEWED",
  "ASSESSMENT_RECEIVED", "ASSESSMENT_COMPLETED", "INTERVIEW_SCHEDULED",
  "INTERVIEW_COMPLETED", "REFERENCE_REQUESTED", "OFFER_RECEIVED",
  "OFFER_ACCEPTED", "OFFER_DECLINED", "APPLICATION_REJECTED",
  "APPLICATION_WITHDRAWN".

event_description
- Short natural-language description of what happened.

event_date
- When the event occurred or is scheduled, ISO 8601: YYYY-MM-DDTHH:MM:SS.
  If only a date is available, use "T00:00:00".

confidence
- Your confidence in this classification, 0.0 to 1.0.

### CRITICAL RULES
- Output ONLY the JSON object, no explanations.
- All keys must exist. Use null for missing values.
- Never invent company names or roles; extract only from the text.
- Automated job-board digests and newsletters are GENERAL.

### Now classify this email:

Subject: %s

%s`, subject, body)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
