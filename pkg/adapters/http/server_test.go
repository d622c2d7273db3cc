package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/deckflow"
	httpadapter "github.com/aretw0/deckflow/pkg/adapters/http"
	"github.com/aretw0/deckflow/pkg/adapters/memory"
	"github.com/aretw0/deckflow/pkg/adapters/scripted"
	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/nodes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, gen *scripted.Generator) *httptest.Server {
	t.Helper()
	a, err := deckflow.New(memory.NewStore(), gen)
	require.NoError(t, err)
	srv := httptest.NewServer(httpadapter.NewHandler(a, httpadapter.WithGatherer(prometheus.NewRegistry())))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createProject(t *testing.T, srv *httptest.Server) domain.Project {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/projects", map[string]string{"title": "Solar", "description": "town hall"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[domain.Project](t, resp)
}

func TestHealth(t *testing.T) {
	srv := newServer(t, scripted.New())
	resp := do(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, deckflow.Version, body["version"])
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestProjects(t *testing.T) {
	srv := newServer(t, scripted.New())
	p := createProject(t, srv)
	assert.Equal(t, domain.PhasePreparation, p.Phase)

	resp := do(t, http.MethodGet, srv.URL+"/projects", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Project](t, resp), 1)

	resp = do(t, http.MethodGet, srv.URL+"/projects/"+p.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Solar", decode[domain.Project](t, resp).Title)

	resp = do(t, http.MethodDelete, srv.URL+"/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodGet, srv.URL+"/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	gen := scripted.New().On(nodes.KindPlanner, scripted.Reply{Content: "not json"})
	srv := newServer(t, gen)
	p := createProject(t, srv)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"blank title", http.MethodPost, "/projects", map[string]string{"title": " "}, http.StatusUnprocessableEntity},
		{"unknown field", http.MethodPost, "/projects", map[string]string{"name": "x"}, http.StatusBadRequest},
		{"unknown project", http.MethodPost, "/projects/nope/messages", map[string]string{"message": "hi"}, http.StatusNotFound},
		{"empty message", http.MethodPost, "/projects/" + p.ID + "/messages", map[string]string{"message": ""}, http.StatusUnprocessableEntity},
		{"bad model output", http.MethodPost, "/projects/" + p.ID + "/messages", map[string]string{"message": "hi"}, http.StatusBadGateway},
		{"no plan yet", http.MethodGet, "/projects/" + p.ID + "/plan", nil, http.StatusNotFound},
		{"bad phase", http.MethodPut, "/projects/" + p.ID + "/phase", map[string]string{"phase": "drafting"}, http.StatusUnprocessableEntity},
		{"bad limit", http.MethodGet, "/projects/" + p.ID + "/messages?limit=-1", nil, http.StatusBadRequest},
		{"unknown graph", http.MethodGet, "/graphs/nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, decode[map[string]string](t, resp)["error"])
		})
	}
}

func TestConversationAndGeneration(t *testing.T) {
	gen := scripted.New().
		On(nodes.KindPlanner, scripted.Reply{Content: `{"response": "Who is the audience?", "presentation_plan": {"title": "Solar 101"}}`}).
		On(nodes.KindOutline, scripted.Reply{Content: `{"slides": [{"slide_number": 1, "title": "Hook", "time_spent_on_slide": 30}]}`}).
		On(nodes.KindSlideContent, scripted.Reply{Content: `{"slides": [{"slide_number": 1, "content": "<p>Sun</p>"}]}`}).
		On(nodes.KindSpeakerNotes, scripted.Reply{Content: `{"slides": [{"slide_number": 1, "speaker_notes": "Smile"}]}`}).
		On(nodes.KindDeliveryTutorial, scripted.Reply{Content: `{"slides": [{"slide_number": 1, "delivery_tutorial": "Breathe"}]}`})
	srv := newServer(t, gen)
	p := createProject(t, srv)
	base := srv.URL + "/projects/" + p.ID

	resp := do(t, http.MethodPost, base+"/messages", map[string]string{"message": "A talk on solar"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reply := decode[deckflow.Reply](t, resp)
	require.Len(t, reply.Replies, 1)
	assert.Equal(t, "Who is the audience?", reply.Replies[0].Content)

	resp = do(t, http.MethodGet, base+"/messages?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[deckflow.HistoryPage](t, resp)
	assert.Equal(t, 2, page.Total)
	assert.True(t, page.HasMore)
	assert.Len(t, page.Messages, 1)

	resp = do(t, http.MethodGet, base+"/plan", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Solar 101", *decode[domain.PresentationPlan](t, resp).Title)

	resp = do(t, http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[deckflow.Generation](t, resp)
	assert.Equal(t, domain.PhaseReview, out.Phase)

	resp = do(t, http.MethodGet, base+"/slides", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slides := decode[map[string][]domain.Slide](t, resp)["slides"]
	require.Len(t, slides, 1)
	assert.Equal(t, "Breathe", slides[0].DeliveryTutorial)

	resp = do(t, http.MethodPut, base+"/phase", map[string]string{"phase": "generation"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPut, base+"/phase", map[string]string{"phase": "COMPLETE"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.PhaseComplete, decode[domain.Project](t, resp).Phase)
}

func TestGraphs(t *testing.T) {
	srv := newServer(t, scripted.New())

	resp := do(t, http.MethodGet, srv.URL+"/graphs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, decode[[]string](t, resp), "presentation")

	resp = do(t, http.MethodGet, srv.URL+"/graphs/presentation", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.True(t, strings.HasPrefix(buf.String(), "graph TD"))

	resp = do(t, http.MethodGet, srv.URL+"/graphs/chat?format=json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "chat", decode[domain.Topology](t, resp).Name)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "deckflow_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	a, err := deckflow.New(memory.NewStore(), scripted.New())
	require.NoError(t, err)
	srv := httptest.NewServer(httpadapter.NewHandler(a, httpadapter.WithGatherer(reg)))
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), "deckflow_test_total 1")
}

func TestSubscribeEvents(t *testing.T) {
	gen := scripted.New().OnJSON(nodes.KindPlanner, map[string]any{"response": "streamed reply"})
	a, err := deckflow.New(memory.NewStore(), gen)
	require.NoError(t, err)
	handler := httpadapter.NewHandler(a)
	p, err := a.CreateProject(context.Background(), "Live", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(sub, httptest.NewRequest(http.MethodGet, "/projects/"+p.ID+"/events", nil).WithContext(ctx))
	}()

	time.Sleep(100 * time.Millisecond) // wait for the subscription to register

	body, _ := json.Marshal(map[string]string{"message": "hello"})
	send := httptest.NewRecorder()
	handler.ServeHTTP(send, httptest.NewRequest(http.MethodPost, "/projects/"+p.ID+"/messages", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, send.Code)

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	out := sub.Body.String()
	assert.Contains(t, out, "event: ping")
	assert.Contains(t, out, `"type":"message"`)
	assert.Contains(t, out, "streamed reply")
}

func TestStreamManager(t *testing.T) {
	sm := httpadapter.NewStreamManager(nil)
	ch, cancel := sm.Subscribe("p1")
	assert.Equal(t, 1, sm.Subscribers("p1"))

	sm.Broadcast("p1", "hello")
	sm.Broadcast("p2", "ignored")
	assert.Equal(t, "hello", <-ch)

	cancel()
	cancel()
	assert.Zero(t, sm.Subscribers("p1"))
	_, open := <-ch
	assert.False(t, open)
}
