package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/mesh-intelligence/apexdraft/internal/entity"
	"github.com/mesh-intelligence/apexdraft/internal/sqlite"
	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

type fakeDrivers struct {
	drivers []types.Driver
	stats   types.DriverStats
	err     error
	asked   []int
}

func (f *fakeDrivers) Drivers(context.Context) ([]types.Driver, error) {
	return f.drivers, f.err
}

func (f *fakeDrivers) DriverStats(_ context.Context, n int) (types.DriverStats, error) {
	f.asked = append(f.asked, n)
	return f.stats, f.err
}

func ptr[T any](v T) *T { return &v }

type testEnv struct {
	srv     *Server
	kv      *sqlite.Backend
	drivers *fakeDrivers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	kv, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	var (
		mu sync.Mutex
		n  int
	)
	opts := entity.Options{
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("new-%d", n)
		},
		Now: func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	}
	seed := entity.DefaultSeed()
	drivers := &fakeDrivers{
		drivers: []types.Driver{
			{ID: 1, Name: "Max VERSTAPPEN", TeamName: "Red Bull Racing", TeamColour: "3671C6", Number: 1,
				HeadshotURL: "https://example.test/ver.png", CountryCode: "NED", Points: ptr(25.0)},
			{ID: 44, Name: "Lewis HAMILTON", TeamName: "Ferrari", TeamColour: "E80020", Number: 44, CountryCode: "GBR"},
		},
		stats: types.DriverStats{
			DriverNumber: 1, Position: ptr(1), Points: ptr(25.0),
			FastestLapRank: ptr(1), FastestLapTime: ptr("1:33.457"), LapsCompleted: 57,
		},
	}
	srv := New(Deps{
		Users:   entity.NewUsers(kv, seed.Users, opts),
		Chats:   entity.NewChats(kv, seed.Chats, opts),
		Drivers: drivers,
	})
	return &testEnv{srv: srv, kv: kv, drivers: drivers}
}

// do sends a request and returns the recorder.
func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, want int) response {
	t.Helper()
	require.Equal(t, want, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var r response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, want < 400, r.Success)
	return r
}

func TestGoldenResponses(t *testing.T) {
	e := newTestEnv(t)
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))

	tests := []struct {
		name   string
		target string
		status int
	}{
		{name: "health", target: "/api/health", status: http.StatusOK},
		{name: "users_first_page", target: "/api/users?limit=2", status: http.StatusOK},
		{name: "users_last_page", target: "/api/users?limit=2&cursor=eyJjIjoidXNlcnMiLCJvIjoyLCJhIjoidTIifQ", status: http.StatusOK},
		{name: "chats_list", target: "/api/chats", status: http.StatusOK},
		{name: "drivers", target: "/api/drivers", status: http.StatusOK},
		{name: "driver_stats", target: "/api/drivers/1/stats", status: http.StatusOK},
		{name: "invalid_cursor", target: "/api/users?cursor=!!!", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, tt.target, "")
			require.Equal(t, tt.status, rec.Code)
			g.Assert(t, tt.name, rec.Body.Bytes())
		})
	}
}

func TestHealthAlias(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, e.do(t, http.MethodGet, "/api/health", "").Body.String(),
		e.do(t, http.MethodGet, "/api/test", "").Body.String())
}

func TestUsersLifecycle(t *testing.T) {
	e := newTestEnv(t)

	r := decode(t, e.do(t, http.MethodPost, "/api/users", `{"name":"  Oscar  "}`), http.StatusOK)
	assert.JSONEq(t, `{"id":"new-1","name":"Oscar"}`, string(r.Data))

	// Creating before listing means the collection is already written and
	// the seed is skipped.
	r = decode(t, e.do(t, http.MethodGet, "/api/users", ""), http.StatusOK)
	assert.JSONEq(t, `{"items":[{"id":"new-1","name":"Oscar"}],"next":null}`, string(r.Data))

	r = decode(t, e.do(t, http.MethodDelete, "/api/users/new-1", ""), http.StatusOK)
	assert.JSONEq(t, `{"id":"new-1","deleted":true}`, string(r.Data))
	r = decode(t, e.do(t, http.MethodDelete, "/api/users/new-1", ""), http.StatusOK)
	assert.JSONEq(t, `{"id":"new-1","deleted":false}`, string(r.Data))
}

func TestCreateUserValidation(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{name: "blank name", body: `{"name":"   "}`, status: http.StatusBadRequest, msg: "name required"},
		{name: "missing name", body: `{}`, status: http.StatusBadRequest, msg: "name required"},
		{name: "malformed json", body: `{"name":`, status: http.StatusBadRequest, msg: "validation failed: malformed JSON body"},
		{name: "wrong type", body: `{"name":7}`, status: http.StatusBadRequest, msg: "validation failed: malformed JSON body"},
		{name: "empty body", body: "", status: http.StatusBadRequest, msg: "validation failed: malformed JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := decode(t, e.do(t, http.MethodPost, "/api/users", tt.body), tt.status)
			assert.Equal(t, tt.msg, r.Error)
		})
	}
}

func TestListLimitParameter(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		query  string
		status int
		items  int
	}{
		{query: "limit=0", status: http.StatusOK, items: 1},
		{query: "limit=-5", status: http.StatusOK, items: 1},
		{query: "limit=2", status: http.StatusOK, items: 2},
		{query: "", status: http.StatusOK, items: 3},
		{query: "limit=abc", status: http.StatusOK, items: 1},
		{query: "limit=2.5", status: http.StatusOK, items: 2},
		{query: "limit=1.9", status: http.StatusOK, items: 1},
		{query: "limit=1e3", status: http.StatusOK, items: 3},
		{query: "limit=-2.5", status: http.StatusOK, items: 1},
		{query: "limit=NaN", status: http.StatusOK, items: 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := decode(t, e.do(t, http.MethodGet, "/api/users?"+tt.query, ""), tt.status)
			if tt.status != http.StatusOK {
				return
			}
			var page types.Page[types.User]
			require.NoError(t, json.Unmarshal(r.Data, &page))
			assert.Len(t, page.Items, tt.items)
		})
	}
}

func TestForeignCursorRejected(t *testing.T) {
	e := newTestEnv(t)
	decode(t, e.do(t, http.MethodGet, "/api/chats", ""), http.StatusOK)
	decode(t, e.do(t, http.MethodPost, "/api/chats", `{"title":"Second"}`), http.StatusOK)

	r := decode(t, e.do(t, http.MethodGet, "/api/chats?limit=1", ""), http.StatusOK)
	var page types.Page[types.Chat]
	require.NoError(t, json.Unmarshal(r.Data, &page))
	require.NotNil(t, page.Next)

	decode(t, e.do(t, http.MethodGet, "/api/users?cursor="+*page.Next, ""), http.StatusBadRequest)
}

func TestDeleteMany(t *testing.T) {
	e := newTestEnv(t)
	decode(t, e.do(t, http.MethodGet, "/api/users", ""), http.StatusOK)

	r := decode(t, e.do(t, http.MethodPost, "/api/users/deleteMany", `{"ids":["u1","nope",3,null,"u3"]}`), http.StatusOK)
	assert.JSONEq(t, `{"deletedCount":2,"ids":["u1","nope","u3"]}`, string(r.Data))

	r = decode(t, e.do(t, http.MethodGet, "/api/users", ""), http.StatusOK)
	assert.JSONEq(t, `{"items":[{"id":"u2","name":"User B"}],"next":null}`, string(r.Data))

	for _, body := range []string{`{"ids":[]}`, `{"ids":[1,2]}`, `{}`, `{"ids":[""]}`, `{"ids":["",null]}`} {
		r = decode(t, e.do(t, http.MethodPost, "/api/users/deleteMany", body), http.StatusBadRequest)
		assert.Equal(t, "ids required", r.Error)
	}
}

func TestChats(t *testing.T) {
	e := newTestEnv(t)
	decode(t, e.do(t, http.MethodGet, "/api/chats", ""), http.StatusOK)

	r := decode(t, e.do(t, http.MethodPost, "/api/chats", `{"title":" Pit Wall "}`), http.StatusOK)
	assert.JSONEq(t, `{"id":"new-1","title":"Pit Wall"}`, string(r.Data))

	r = decode(t, e.do(t, http.MethodPost, "/api/chats", `{"title":""}`), http.StatusBadRequest)
	assert.Equal(t, "title required", r.Error)

	r = decode(t, e.do(t, http.MethodGet, "/api/chats/new-1/messages", ""), http.StatusOK)
	assert.JSONEq(t, `[]`, string(r.Data))

	r = decode(t, e.do(t, http.MethodPost, "/api/chats/new-1/messages", `{"userId":"u1","text":" Box this lap "}`), http.StatusOK)
	assert.JSONEq(t, `{"id":"new-2","chatId":"new-1","userId":"u1","text":"Box this lap","ts":1700000000000}`, string(r.Data))

	r = decode(t, e.do(t, http.MethodGet, "/api/chats/new-1/messages", ""), http.StatusOK)
	var msgs []types.ChatMessage
	require.NoError(t, json.Unmarshal(r.Data, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "Box this lap", msgs[0].Text)

	r = decode(t, e.do(t, http.MethodPost, "/api/chats/deleteMany", `{"ids":["new-1","c1"]}`), http.StatusOK)
	assert.JSONEq(t, `{"deletedCount":2,"ids":["new-1","c1"]}`, string(r.Data))
	r = decode(t, e.do(t, http.MethodDelete, "/api/chats/c1", ""), http.StatusOK)
	assert.JSONEq(t, `{"id":"c1","deleted":false}`, string(r.Data))
}

func TestMessagesErrors(t *testing.T) {
	e := newTestEnv(t)
	decode(t, e.do(t, http.MethodGet, "/api/chats", ""), http.StatusOK)

	decode(t, e.do(t, http.MethodGet, "/api/chats/missing/messages", ""), http.StatusNotFound)
	decode(t, e.do(t, http.MethodPost, "/api/chats/missing/messages", `{"userId":"u1","text":"hi"}`), http.StatusNotFound)

	for _, body := range []string{
		`{"userId":1,"text":"hi"}`,
		`{"userId":"u1","text":"   "}`,
		`{"userId":"u1"}`,
		`{"text":"hi"}`,
	} {
		r := decode(t, e.do(t, http.MethodPost, "/api/chats/c1/messages", body), http.StatusBadRequest)
		assert.Equal(t, "userId and text required", r.Error, body)
	}
}

func TestDrivers(t *testing.T) {
	e := newTestEnv(t)

	decode(t, e.do(t, http.MethodGet, "/api/drivers/44/stats", ""), http.StatusOK)
	assert.Equal(t, []int{44}, e.drivers.asked)

	for _, id := range []string{"abc", "0", "-1", "1.5"} {
		decode(t, e.do(t, http.MethodGet, "/api/drivers/"+id+"/stats", ""), http.StatusBadRequest)
	}
	assert.Len(t, e.drivers.asked, 1)

	e.drivers.err = fmt.Errorf("%w: position returned 503", types.ErrUpstream)
	r := decode(t, e.do(t, http.MethodGet, "/api/drivers", ""), http.StatusBadGateway)
	assert.Contains(t, r.Error, "returned 503")
	decode(t, e.do(t, http.MethodGet, "/api/drivers/1/stats", ""), http.StatusBadGateway)
}

func TestStorageFailureIsInternalError(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.kv.Close())

	r := decode(t, e.do(t, http.MethodGet, "/api/users", ""), http.StatusInternalServerError)
	assert.Equal(t, "internal error", r.Error)
}

func TestUnknownRoute(t *testing.T) {
	e := newTestEnv(t)
	r := decode(t, e.do(t, http.MethodGet, "/api/nope", ""), http.StatusNotFound)
	assert.Equal(t, "not found", r.Error)
}

func TestBodyTooLarge(t *testing.T) {
	e := newTestEnv(t)
	body := `{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	decode(t, e.do(t, http.MethodPost, "/api/users", body), http.StatusRequestEntityTooLarge)
}

func TestRecovererReturnsEnvelope(t *testing.T) {
	s := New(Deps{})
	h := s.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	r := decode(t, rec, http.StatusInternalServerError)
	assert.Equal(t, "internal error", r.Error)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	decode(t, e.do(t, http.MethodGet, "/api/users", ""), http.StatusOK)
	decode(t, e.do(t, http.MethodGet, "/api/users/x", ""), http.StatusNotFound)

	rec := e.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `apexdraft_http_requests_total{method="GET",route="GET /api/users",status_code="200"} 1`)
	assert.Contains(t, body, `route="/",status_code="404"`)
	assert.Contains(t, body, "apexdraft_http_request_duration_seconds_bucket")
}

func TestMetricsObserveStoreOps(t *testing.T) {
	m := NewMetrics()
	m.ObserveOp("users", "get", nil, time.Millisecond)
	m.ObserveOp("users", "get", types.ErrNotFound, time.Millisecond)
	m.ObserveOp("users", "list", types.ErrInvalidCursor, time.Millisecond)
	m.ObserveOp("users", "list", types.NewStorageError("get", "k", context.Canceled), time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`apexdraft_store_operations_total{collection="users",operation="get",outcome="ok"} 1`,
		`apexdraft_store_operations_total{collection="users",operation="get",outcome="not_found"} 1`,
		`apexdraft_store_operations_total{collection="users",operation="list",outcome="rejected"} 1`,
		`apexdraft_store_operations_total{collection="users",operation="list",outcome="error"} 1`,
	} {
		assert.Contains(t, body, want)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	e := newTestEnv(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, buf.String(), AppName)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestSpansNamedByRoute(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	kv, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	srv := New(Deps{
		Users:          entity.NewUsers(kv, entity.DefaultSeed().Users, entity.Options{}),
		Chats:          entity.NewChats(kv, entity.DefaultSeed().Chats, entity.Options{}),
		Drivers:        &fakeDrivers{},
		TracerProvider: tp,
	})

	for _, target := range []string{"/api/users", "/api/chats/c1/messages", "/api/chats/c9/messages", "/nowhere"} {
		srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}
	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/users/u2", nil))

	var names []string
	for _, span := range exporter.GetSpans() {
		if span.SpanKind == trace.SpanKindServer {
			names = append(names, span.Name)
		}
	}
	assert.Equal(t, []string{
		"GET /api/users",
		"GET /api/chats/{chatId}/messages",
		"GET /api/chats/{chatId}/messages",
		"GET",
		"DELETE /api/users/{id}",
	}, names)
}
