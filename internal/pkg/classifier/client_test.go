package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func verdictResponse(t *testing.T, reasoning, classification string) string {
	t.Helper()
	inner, err := json.Marshal(map[string]string{
		"reasoning":      reasoning,
		"classification": classification,
	})
	if err != nil {
		t.Fatalf("marshal inner verdict: %v", err)
	}
	outer, err := json.Marshal([]map[string]string{{"content": string(inner)}})
	if err != nil {
		t.Fatalf("marshal outer response: %v", err)
	}
	return string(outer)
}

func newTestClient(url string) *Client {
	return NewClient(Config{
		APIURL:   url,
		ClientID: "test-forum-client",
		Timeout:  time.Second,
	})
}

func TestClassifySpam(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(verdictResponse(t, "promotional link spam", "spam")))
	}))
	t.Cleanup(server.Close)

	d := newTestClient(server.URL).Classify(context.Background(), "Buy cheap followers now!!!")

	if !d.Succeeded {
		t.Fatal("expected succeeded decision")
	}
	if !d.Classification.IsSpam() {
		t.Fatalf("expected spam classification, got %s", d.Classification)
	}
	if d.Reasoning != "promotional link spam" {
		t.Fatalf("unexpected reasoning: %q", d.Reasoning)
	}
	if len(d.RawOutput) == 0 {
		t.Fatal("expected raw output to be preserved")
	}
}

func TestClassifySpamOrScamCompat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(verdictResponse(t, "impersonates course staff", "spam_or_scam")))
	}))
	t.Cleanup(server.Close)

	d := newTestClient(server.URL).Classify(context.Background(), "I'm Professor Johnson, WhatsApp me")

	if !d.Succeeded || !d.Classification.IsSpam() {
		t.Fatalf("expected spam_or_scam to count as spam, got %+v", d)
	}
}

func TestClassifyNotSpam(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(verdictResponse(t, "legitimate academic question", "not_spam")))
	}))
	t.Cleanup(server.Close)

	d := newTestClient(server.URL).Classify(context.Background(), "How does merge sort work?")

	if !d.Succeeded {
		t.Fatal("expected succeeded decision")
	}
	if d.Classification != ClassificationNotSpam {
		t.Fatalf("expected not_spam, got %s", d.Classification)
	}
	if d.Classification.IsSpam() {
		t.Fatal("not_spam must not count as spam")
	}
}

func TestClassifyRequestShape(t *testing.T) {
	var got apiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(verdictResponse(t, "ok", "not_spam")))
	}))
	t.Cleanup(server.Close)

	newTestClient(server.URL).Classify(context.Background(), "hello world")

	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "hello world" {
		t.Fatalf("unexpected messages payload: %+v", got.Messages)
	}
	if got.ClientID != "test-forum-client" {
		t.Fatalf("unexpected client_id: %q", got.ClientID)
	}
	if got.SystemMessage == "" {
		t.Fatal("expected default system message to be sent")
	}
}

func TestClassifyMalformedResponses(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "banana"},
		{"empty list", "[]"},
		{"content not json", `[{"content":"not json at all"}]`},
		{"missing classification", `[{"content":"{\"reasoning\":\"r\"}"}]`},
		{"missing reasoning", `[{"content":"{\"classification\":\"spam\"}"}]`},
		{"unexpected classification", `[{"content":"{\"reasoning\":\"r\",\"classification\":\"maybe\"}"}]`},
		{"object instead of list", `{"content":"{}"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			t.Cleanup(server.Close)

			d := newTestClient(server.URL).Classify(context.Background(), "any content")

			if d.Succeeded {
				t.Fatal("expected fail-open decision")
			}
			if d.Classification != ClassificationUnknown {
				t.Fatalf("expected unknown classification, got %s", d.Classification)
			}
			if d.Classification.IsSpam() {
				t.Fatal("fail-open decision must never count as spam")
			}
		})
	}
}

func TestClassifyTimeoutFailsOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(verdictResponse(t, "too late", "spam")))
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{
		APIURL:   server.URL,
		ClientID: "test-forum-client",
		Timeout:  20 * time.Millisecond,
	})
	d := client.Classify(context.Background(), "any content")

	if d.Succeeded || d.Classification != ClassificationUnknown {
		t.Fatalf("expected fail-open on timeout, got %+v", d)
	}
}

func TestClassifyServerErrorFailsOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	}))
	t.Cleanup(server.Close)

	d := newTestClient(server.URL).Classify(context.Background(), "any content")

	if d.Succeeded || d.Classification != ClassificationUnknown {
		t.Fatalf("expected fail-open on 500, got %+v", d)
	}
}

func TestClassifierDisabledWithoutConfig(t *testing.T) {
	client := NewClient(Config{})

	if client.Enabled() {
		t.Fatal("expected client without config to be disabled")
	}

	d := client.Classify(context.Background(), "any content")
	if d.Succeeded || d.Classification != ClassificationUnknown {
		t.Fatalf("expected fail-open from disabled client, got %+v", d)
	}
}
