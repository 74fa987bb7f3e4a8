package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/octoroute/internal/catalog"
	"github.com/tributary-ai/octoroute/internal/selector"
	"github.com/tributary-ai/octoroute/internal/upstream"
)

const (
	maxUserPromptChars  = 500
	maxRouterResponse   = 1024 // bytes; ~100x the expected one-word reply
	maxRouterRetries    = 2
	unparseablePreview  = 100
)

var refusalPatterns = []string{
	"CANNOT", "CAN'T", "UNABLE", "ERROR", "SORRY", "REFUSE", "FAILED", "TIMEOUT",
}

// LlmErrorKind classifies an LlmRouterError without string matching.
type LlmErrorKind int

const (
	EmptyResponse LlmErrorKind = iota
	UnparseableResponse
	Refusal
	SizeExceeded
	AgentOptionsConfigError
	StreamError
	Timeout
	RoutingFailedExhaustion
	RoutingFailedTransient
	TierNotConfigured
)

// LlmRouterError is the single structured error type the LLM router and
// its callers switch on, never on message strings.
type LlmRouterError struct {
	Kind    LlmErrorKind
	Message string
	Cause   error
}

func (e *LlmRouterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *LlmRouterError) Unwrap() error { return e.Cause }

// IsRetryable implements spec §4.5's error taxonomy: systemic errors fail
// fast, transient errors are retried against a different endpoint.
func IsRetryable(err error) bool {
	lerr, ok := err.(*LlmRouterError)
	if !ok {
		return true // unknown error type: conservatively retry
	}
	switch lerr.Kind {
	case EmptyResponse, UnparseableResponse, Refusal, SizeExceeded, AgentOptionsConfigError, TierNotConfigured, RoutingFailedExhaustion:
		return false
	case StreamError, Timeout, RoutingFailedTransient:
		return true
	default:
		return true
	}
}

// LlmRouter queries the router tier (bound via a TierSelector, typically
// Balanced) to make routing decisions when the rule router delegates.
type LlmRouter struct {
	tierSelector *selector.TierSelector
	tracker      healthTracker
	clients      func(ep catalog.Endpoint) upstream.Client
	timeout      time.Duration
	log          *logrus.Logger
}

// healthTracker is the subset of internal/health.Tracker the LLM router
// needs; kept as a local interface so this package does not depend on
// the concrete tracker type for its own mark-only usage.
type healthTracker interface {
	MarkSuccess(name string) error
	MarkFailure(name string) error
}

// NewLlmRouter builds an LlmRouter bound to the router tier's TierSelector.
func NewLlmRouter(tierSelector *selector.TierSelector, tracker healthTracker, clients func(catalog.Endpoint) upstream.Client, timeout time.Duration, log *logrus.Logger) *LlmRouter {
	return &LlmRouter{tierSelector: tierSelector, tracker: tracker, clients: clients, timeout: timeout, log: log}
}

// Route builds the routing prompt, queries the router tier with up to
// maxRouterRetries attempts, and parses the result.
func (r *LlmRouter) Route(ctx context.Context, userPrompt string, meta RouteMetadata) (catalog.Tier, error) {
	prompt := buildRouterPrompt(userPrompt, meta)

	excl := selector.NewExclusion()
	var lastErr error

	for attempt := 1; attempt <= maxRouterRetries; attempt++ {
		ep, ok := r.tierSelector.Select(excl)
		if !ok {
			lastErr = &LlmRouterError{Kind: RoutingFailedTransient, Message: "no healthy router-tier endpoints available for this attempt"}
			continue
		}

		tier, err := r.tryQuery(ctx, ep, prompt)
		if err == nil {
			if merr := r.tracker.MarkSuccess(ep.Name); merr != nil {
				r.log.WithError(merr).WithField("endpoint", ep.Name).Warn("llm router: mark_success failed")
			}
			return tier, nil
		}

		if !IsRetryable(err) {
			return 0, err
		}

		if merr := r.tracker.MarkFailure(ep.Name); merr != nil {
			r.log.WithError(merr).WithField("endpoint", ep.Name).Warn("llm router: mark_failure failed")
		}
		excl.Add(ep.Name)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = &LlmRouterError{Kind: RoutingFailedExhaustion, Message: fmt.Sprintf("all %d router retry attempts exhausted", maxRouterRetries)}
	}
	return 0, lastErr
}

func (r *LlmRouter) tryQuery(ctx context.Context, ep catalog.Endpoint, prompt string) (catalog.Tier, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	client := r.clients(ep)
	stream, err := client.Query(queryCtx, upstream.QueryOptions{
		Messages:    []upstream.ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   ep.MaxTokens,
		Temperature: ep.Temperature,
	})
	if err != nil {
		if queryCtx.Err() != nil {
			return 0, &LlmRouterError{Kind: Timeout, Message: "router query timed out", Cause: err}
		}
		return 0, &LlmRouterError{Kind: StreamError, Message: "router query failed", Cause: err}
	}
	defer stream.Close()

	var b strings.Builder
	for {
		block, more, serr := stream.Next(queryCtx)
		if serr != nil {
			return 0, &LlmRouterError{Kind: StreamError, Message: "router stream error", Cause: serr}
		}
		if !more {
			break
		}
		if block.Kind == upstream.TextBlock {
			b.WriteString(block.Text)
			if b.Len() > maxRouterResponse {
				return 0, &LlmRouterError{Kind: SizeExceeded, Message: "router response exceeded size guard, LLM is not following instructions"}
			}
		}
	}

	return parseRoutingDecision(b.String())
}

// buildRouterPrompt truncates the user prompt to maxUserPromptChars code
// points (never splitting a multi-byte sequence) and assembles the fixed
// routing prompt.
func buildRouterPrompt(userPrompt string, meta RouteMetadata) string {
	runes := []rune(userPrompt)
	truncated := userPrompt
	if len(runes) > maxUserPromptChars {
		truncated = string(runes[:maxUserPromptChars]) + "... [truncated]"
	}

	return fmt.Sprintf(
		"You are a router that chooses which LLM to use.\n\n"+
			"Available models:\n"+
			"- FAST: Quick, for simple chat, short Q&A, casual tasks.\n"+
			"- BALANCED: Good reasoning, coding, document summaries, explanations.\n"+
			"- DEEP: Deep reasoning, creative writing, complex analysis, research.\n\n"+
			"User request:\n%s\n\n"+
			"Metadata:\n"+
			"- Estimated tokens: %d\n"+
			"- Importance: %s\n"+
			"- Task type: %s\n\n"+
			"Based on the above, respond with ONLY one word: FAST, BALANCED, or DEEP.\n"+
			"Do not include explanations or other text.",
		truncated, meta.TokenEstimate, importanceString(meta.Importance), taskTypeString(meta.TaskType),
	)
}

func importanceString(i Importance) string {
	switch i {
	case Low:
		return "Low"
	case High:
		return "High"
	default:
		return "Normal"
	}
}

func taskTypeString(t TaskType) string {
	switch t {
	case CasualChat:
		return "CasualChat"
	case Code:
		return "Code"
	case CreativeWriting:
		return "CreativeWriting"
	case DeepAnalysis:
		return "DeepAnalysis"
	case DocumentSummary:
		return "DocumentSummary"
	default:
		return "QuestionAnswer"
	}
}

// parseRoutingDecision implements spec §4.5's parser exactly: trim and
// uppercase, reject empty, reject refusal markers, then find the leftmost
// whole-word occurrence of FAST/BALANCED/DEEP.
func parseRoutingDecision(response string) (catalog.Tier, error) {
	normalized := strings.ToUpper(strings.TrimSpace(response))

	if normalized == "" {
		return 0, &LlmRouterError{Kind: EmptyResponse, Message: "router LLM returned empty response"}
	}

	for _, pattern := range refusalPatterns {
		if strings.Contains(normalized, pattern) {
			return 0, &LlmRouterError{Kind: Refusal, Message: fmt.Sprintf("router LLM returned refusal/error response (contains %q): %q", pattern, preview(response, unparseablePreview))}
		}
	}

	type candidate struct {
		pos  int
		tier catalog.Tier
	}
	var candidates []candidate
	if pos, ok := findWordBoundary(normalized, "FAST"); ok {
		candidates = append(candidates, candidate{pos, catalog.Fast})
	}
	if pos, ok := findWordBoundary(normalized, "BALANCED"); ok {
		candidates = append(candidates, candidate{pos, catalog.Balanced})
	}
	if pos, ok := findWordBoundary(normalized, "DEEP"); ok {
		candidates = append(candidates, candidate{pos, catalog.Deep})
	}

	if len(candidates) == 0 {
		return 0, &LlmRouterError{Kind: UnparseableResponse, Message: fmt.Sprintf("router LLM returned unparseable response (length %d): %q", len(response), preview(response, unparseablePreview))}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.pos < best.pos {
			best = c
		}
	}
	return best.tier, nil
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "... [truncated]"
}

// findWordBoundary finds the leftmost occurrence of word in text such
// that the byte before and after (if any) is not ASCII-alphanumeric.
// Deliberately not regex \b: multi-byte characters on either side count
// as boundaries since they are non-ASCII-alphanumeric by construction.
func findWordBoundary(text, word string) (int, bool) {
	searchFrom := 0
	for {
		idx := strings.Index(text[searchFrom:], word)
		if idx == -1 {
			return 0, false
		}
		pos := searchFrom + idx

		beforeOK := pos == 0 || !isASCIIAlphanumeric(text[pos-1])
		afterPos := pos + len(word)
		afterOK := afterPos >= len(text) || !isASCIIAlphanumeric(text[afterPos])

		if beforeOK && afterOK {
			return pos, true
		}
		searchFrom = pos + 1
	}
}

func isASCIIAlphanumeric(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
