package server

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/octoroute/internal/audit"
	"github.com/tributary-ai/octoroute/internal/catalog"
	"github.com/tributary-ai/octoroute/internal/dispatch"
	"github.com/tributary-ai/octoroute/internal/health"
	"github.com/tributary-ai/octoroute/internal/metrics"
	"github.com/tributary-ai/octoroute/internal/routing"
	"github.com/tributary-ai/octoroute/internal/selector"
	"github.com/tributary-ai/octoroute/internal/upstream"
	"github.com/tributary-ai/octoroute/internal/validate"
)

// fakeClient is a scripted upstream.Client: it answers every query with a
// fixed reply, or fails if configured to, without ever touching a network.
type fakeClient struct {
	reply string
	fail  bool
}

func (c *fakeClient) Query(ctx context.Context, opts upstream.QueryOptions) (upstream.ContentStream, error) {
	if c.fail {
		return nil, fakeQueryErr("fakeClient: simulated upstream failure")
	}
	return &fakeStream{blocks: []upstream.ContentBlock{{Kind: upstream.TextBlock, Text: c.reply}}}, nil
}

type fakeQueryErr string

func (e fakeQueryErr) Error() string { return string(e) }

type fakeStream struct {
	blocks []upstream.ContentBlock
	pos    int
}

func (s *fakeStream) Next(ctx context.Context) (upstream.ContentBlock, bool, error) {
	if s.pos >= len(s.blocks) {
		return upstream.ContentBlock{}, false, nil
	}
	b := s.blocks[s.pos]
	s.pos++
	return b, true, nil
}

func (s *fakeStream) Close() error { return nil }

// testHarness wires a full Server against an in-memory catalog with one
// endpoint per tier, all served by the same scripted client, so handler tests
// never depend on a real upstream or network.
type testHarness struct {
	server *Server
	cat    *catalog.Catalog
	client *fakeClient
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)

	fastEndpoint := catalog.Endpoint{
		Name: "test-fast-model", BaseURL: "http://127.0.0.1:0",
		Protocol: "openai", MaxTokens: 512, Temperature: 0.7, Weight: 1, Priority: 1,
	}
	balancedEndpoint := catalog.Endpoint{
		Name: "test-balanced-model", BaseURL: "http://127.0.0.1:0",
		Protocol: "openai", MaxTokens: 1024, Temperature: 0.7, Weight: 1, Priority: 1,
	}
	deepEndpoint := catalog.Endpoint{
		Name: "test-deep-model", BaseURL: "http://127.0.0.1:0",
		Protocol: "anthropic", MaxTokens: 2048, Temperature: 0.7, Weight: 1, Priority: 1,
	}
	cat, err := catalog.New(
		map[catalog.Tier][]catalog.Endpoint{
			catalog.Fast:     {fastEndpoint},
			catalog.Balanced: {balancedEndpoint},
			catalog.Deep:     {deepEndpoint},
		},
		map[catalog.Tier]time.Duration{catalog.Fast: time.Second, catalog.Balanced: time.Second, catalog.Deep: time.Second},
	)
	require.NoError(t, err)

	sink := metrics.New()
	tracker := health.New(log, cat.AllEndpointNames())
	prober := health.NewProber(tracker, cat, sink, log)
	sel := selector.New(cat, tracker, log)
	router := routing.NewRuleOnlyRouter(routing.NewRuleRouter(), sel, cat)

	client := &fakeClient{reply: "hello from fast tier"}
	clients := dispatch.ClientFactory(func(ep catalog.Endpoint) upstream.Client { return client })

	disp := dispatch.New(cat, sel, tracker, clients, sink, dispatch.DefaultConfig(), log)
	auditLogger := audit.New(log, 16)

	schema, err := validate.NewSchema()
	require.NoError(t, err)
	limiter := validate.NewBodyLimiter()

	srv := New(cat, tracker, prober, router, disp, sink, auditLogger, schema, limiter,
		routing.Normal, ServerConfig{Host: "127.0.0.1", Port: 0}, log)

	return &testHarness{server: srv, cat: cat, client: client}
}

func (h *testHarness) router() *mux.Router { return h.server.setupRoutes() }

func newRecorder() *httptest.ResponseRecorder { return httptest.NewRecorder() }
