package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jobhub/inbox-worker/internal/models"
)

func TestCleanJSONResponse(t *testing.T) {
	client := NewClient("test-key", "")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON",
			input:    `{"intent": "GENERAL"}`,
			expected: `{"intent": "GENERAL"}`,
		},
		{
			name:     "JSON with markdown code blocks",
			input:    "```json\n{\"intent\": \"GENERAL\"}\n```",
			expected: `{"intent": "GENERAL"}`,
		},
		{
			name:     "JSON with explanatory text before",
			input:    "Here is the classification:\n{\"intent\": \"GENERAL\"}",
			expected: `{"intent": "GENERAL"}`,
		},
		{
			name:     "JSON with text before and after",
			input:    "Classification:\n{\"intent\": \"GENERAL\"}\nDone.",
			expected: `{"intent": "GENERAL"}`,
		},
		{
			name:     "JSON with whitespace",
			input:    "  \n  {\"intent\": \"GENERAL\"}  \n  ",
			expected: `{"intent": "GENERAL"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := client.cleanJSONResponse(tt.input)
			if result != tt.expected {
				t.Errorf("Expected:\n%s\n\nGot:\n%s", tt.expected, result)
			}
		})
	}
}

// chatServer returns an httptest server that always answers with the given
// message content.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing or wrong Authorization header: %s", r.Header.Get("Authorization"))
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClassify_NewApplication(t *testing.T) {
	content := `{
		"intent": "NEW_APPLICATION",
		"company": "Acme",
		"role": "Engineer",
		"status": "APPLIED",
		"location": "Remote",
		"confidence": 0.92
	}`
	srv := chatServer(t, content)
	defer srv.Close()

	client := NewClient("test-key", srv.URL)
	parsed, err := client.Classify(context.Background(), "Thanks for applying", "We received your application.")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if parsed.Intent != models.IntentNewApplication {
		t.Errorf("expected NEW_APPLICATION intent, got %s", parsed.Intent)
	}
	if parsed.Company != "Acme" || parsed.Role != "Engineer" {
		t.Errorf("unexpected extraction: %s / %s", parsed.Company, parsed.Role)
	}
	if parsed.Status != models.StatusApplied {
		t.Errorf("expected APPLIED status, got %s", parsed.Status)
	}
	if parsed.Location == nil || *parsed.Location != "Remote" {
		t.Errorf("expected Remote location, got %v", parsed.Location)
	}
	if parsed.Confidence == nil || *parsed.Confidence != 0.92 {
		t.Errorf("expected confidence 0.92, got %v", parsed.Confidence)
	}
}

func TestClassify_EventWithFencedJSONAndDate(t *testing.T) {
	content := "```json\n" + `{
		"intent": "APPLICATION_EVENT",
		"company": "Acme",
		"role": "Engineer",
		"status": "INTERVIEW",
		"event_type": "INTERVIEW_SCHEDULED",
		"event_description": "Phone screen scheduled",
		"event_date": "2026-09-03T15:00:00",
		"confidence": 0.8
	}` + "\n```"
	srv := chatServer(t, content)
	defer srv.Close()

	client := NewClient("test-key", srv.URL)
	parsed, err := client.Classify(context.Background(), "Interview invitation", "Please pick a slot.")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if parsed.EventType == nil || *parsed.EventType != models.EventInterviewScheduled {
		t.Fatalf("expected INTERVIEW_SCHEDULED event type, got %v", parsed.EventType)
	}
	want := time.Date(2026, 9, 3, 15, 0, 0, 0, time.UTC)
	if parsed.EventDate == nil || !parsed.EventDate.Equal(want) {
		t.Errorf("expected event date %v, got %v", want, parsed.EventDate)
	}
}

func TestClassify_UnrecognizedIntent(t *testing.T) {
	srv := chatServer(t, `{"intent": "SPAM", "company": "x", "role": "y"}`)
	defer srv.Close()

	client := NewClient("test-key", srv.URL)
	_, err := client.Classify(context.Background(), "subject", "body")
	if err == nil {
		t.Fatal("expected error for unrecognized intent, got nil")
	}
}

func TestClassify_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL)
	_, err := client.Classify(context.Background(), "subject", "body")
	if err == nil {
		t.Fatal("expected error for non-200 response, got nil")
	}
}

func TestClassify_MalformedJSON(t *testing.T) {
	srv := chatServer(t, "I could not classify this email, sorry.")
	defer srv.Close()

	client := NewClient("test-key", srv.URL)
	_, err := client.Classify(context.Background(), "subject", "body")
	if err == nil {
		t.Fatal("expected error for unparseable response, got nil")
	}
}

func TestBuildParsedEmail_ConfidenceClamped(t *testing.T) {
	over := 1.7
	parsed, err := buildParsedEmail(parsedEmailWire{Intent: "GENERAL", Confidence: &over})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.Confidence == nil || *parsed.Confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %v", parsed.Confidence)
	}
}

func TestBuildParsedEmail_BadDateDropped(t *testing.T) {
	date := "next Tuesday"
	parsed, err := buildParsedEmail(parsedEmailWire{Intent: "APPLICATION_EVENT", EventDate: &date})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.EventDate != nil {
		t.Errorf("expected unparseable date to be dropped, got %v", parsed.EventDate)
	}
}
