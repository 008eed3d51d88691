package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultTimeout = 30 * time.Second

// defaultSystemMessage is the instruction sent with every classification
// request when no override is configured. The classifier must answer with
// strict JSON carrying "reasoning" and "classification" keys.
const defaultSystemMessage = `Filter posts from a discussion forum platform to identify and flag content that is likely to be spam or a scam.

**Instructions**:
- Carefully analyze each post's text for language, links, or patterns typical of spam or scams.
- Use clear reasoning to identify suspicious indicators such as:
  * Promotional language or unsolicited commercial content
  * Misleading claims or "too good to be true" offers
  * Excessive external links (especially non-educational domains)
  * Requests for personal information (phone numbers, email, social media)
  * Suspicious offers (money, investment, guaranteed results)
  * Impersonation of authority figures (course staff, professors)
  * Directing users to external communication platforms (WhatsApp, Telegram)
  * Cryptocurrency, forex, or investment scheme language
  * Urgent pressure tactics ("act now", "limited time")
- After thoroughly explaining your reasoning, classify the post as either "spam_or_scam" or "not_spam".
- Do not make a classification before detailing your reasoning.
- Consider legitimate use cases: course-related external links (.edu domains), genuine help requests, study group formation.

**Output Format** (strict JSON):
{
  "reasoning": "[Detailed explanation referencing specific features of the post. Minimum 2 sentences.]",
  "classification": "[spam_or_scam | not_spam]"
}`

// Classification is the verdict returned by the moderation API.
type Classification string

const (
	ClassificationSpam       Classification = "spam"
	ClassificationSpamOrScam Classification = "spam_or_scam"
	ClassificationNotSpam    Classification = "not_spam"
	// ClassificationUnknown marks a fail-open outcome: the classifier was
	// unreachable, timed out, or returned something unparseable. It must
	// never be treated as a confident not_spam.
	ClassificationUnknown Classification = "unknown"
)

// IsSpam reports whether the classification is a positive spam verdict.
// "spam" is the legacy label, "spam_or_scam" the current prompt output.
func (c Classification) IsSpam() bool {
	return c == ClassificationSpam || c == ClassificationSpamOrScam
}

// Decision is the normalized outcome of one classification attempt.
// Failures are data, not errors: callers check Succeeded, never a
// returned error, so the fail-open policy is structurally enforced.
type Decision struct {
	Classification Classification
	Reasoning      string
	RawOutput      json.RawMessage
	Succeeded      bool
}

// Config holds classifier client configuration.
type Config struct {
	APIURL        string
	ClientID      string
	SystemMessage string
	Timeout       time.Duration
}

// Client calls the external content moderation API.
type Client struct {
	apiURL        string
	clientID      string
	systemMessage string
	http          *http.Client
	disabled      bool
}

// NewClient creates a moderation API client. A client without an API URL
// or client ID is permanently disabled: this is logged once here and
// every Classify call fails open without touching the network.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	systemMessage := cfg.SystemMessage
	if systemMessage == "" {
		systemMessage = defaultSystemMessage
	}

	disabled := strings.TrimSpace(cfg.APIURL) == "" || strings.TrimSpace(cfg.ClientID) == ""
	if disabled {
		log.Warn().Msg("AI moderation API not configured, classifier disabled")
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		apiURL:        strings.TrimRight(cfg.APIURL, "/"),
		clientID:      cfg.ClientID,
		systemMessage: systemMessage,
		disabled:      disabled,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Enabled reports whether the client is configured to reach the API.
func (c *Client) Enabled() bool {
	return c != nil && !c.disabled
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Messages      []message `json:"messages"`
	ClientID      string    `json:"client_id"`
	SystemMessage string    `json:"system_message"`
}

type apiResponseItem struct {
	Content string `json:"content"`
}

type verdict struct {
	Reasoning      string `json:"reasoning"`
	Classification string `json:"classification"`
}

// Classify sends the content text to the moderation API and normalizes
// the outcome. It never returns an error: any failure yields an Unknown,
// not-succeeded Decision.
func (c *Client) Classify(ctx context.Context, text string) Decision {
	if !c.Enabled() {
		return failOpen(nil)
	}

	payload, err := json.Marshal(apiRequest{
		Messages:      []message{{Role: "user", Content: text}},
		ClientID:      c.clientID,
		SystemMessage: c.systemMessage,
	})
	if err != nil {
		log.Error().Err(err).Msg("Classifier request encoding failed")
		return failOpen(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(payload))
	if err != nil {
		log.Error().Err(err).Msg("Classifier request build failed")
		return failOpen(nil)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", "OpenEdxForum/2.0 ai-moderation")

	resp, err := c.http.Do(req)
	if err != nil {
		logRequestError(ctx, err)
		return failOpen(nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn().Err(err).Msg("Classifier unreachable: response read failed")
		return failOpen(nil)
	}

	if resp.StatusCode != http.StatusOK {
		log.Warn().
			Int("status", resp.StatusCode).
			Str("body", truncate(string(body), 512)).
			Msg("Classifier unreachable: non-200 status")
		return failOpen(body)
	}

	return c.parseResponse(body)
}

// parseResponse decodes the API response shape: a list with one element
// whose "content" field is a JSON-encoded string carrying the verdict.
func (c *Client) parseResponse(body []byte) Decision {
	var items []apiResponseItem
	if err := json.Unmarshal(body, &items); err != nil {
		log.Warn().Err(err).Msg("Classifier response malformed: body is not a JSON list")
		return failOpen(body)
	}
	if len(items) == 0 {
		log.Warn().Msg("Classifier response malformed: empty list")
		return failOpen(body)
	}

	var v verdict
	if err := json.Unmarshal([]byte(items[0].Content), &v); err != nil {
		log.Warn().Err(err).Msg("Classifier response malformed: content is not JSON")
		return failOpen(body)
	}

	classification := Classification(v.Classification)
	switch classification {
	case ClassificationSpam, ClassificationSpamOrScam, ClassificationNotSpam:
	default:
		log.Warn().
			Str("classification", v.Classification).
			Msg("Classifier response malformed: unexpected classification value")
		return failOpen(body)
	}

	if v.Reasoning == "" {
		log.Warn().Msg("Classifier response malformed: missing reasoning")
		return failOpen(body)
	}

	return Decision{
		Classification: classification,
		Reasoning:      v.Reasoning,
		RawOutput:      json.RawMessage(body),
		Succeeded:      true,
	}
}

func failOpen(raw []byte) Decision {
	d := Decision{
		Classification: ClassificationUnknown,
		Succeeded:      false,
	}
	if len(raw) > 0 {
		d.RawOutput = json.RawMessage(raw)
	}
	return d
}

func logRequestError(ctx context.Context, err error) {
	switch {
	case isTimeoutError(ctx, err):
		log.Warn().Err(err).Msg("Classifier unreachable: timeout")
	case isNetworkError(err):
		log.Warn().Err(err).Msg("Classifier unreachable: network error")
	default:
		log.Warn().Err(err).Msg("Classifier unreachable: request error")
	}
}

func isTimeoutError(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}

	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return fmt.Sprintf("%s...", s[:max])
}
