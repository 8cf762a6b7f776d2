package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var brt = time.FixedZone("BRT", -3*60*60)

// fakeAPI serves canned envelopes and records request bodies.
type fakeAPI struct {
	mu       sync.Mutex
	bodies   map[string]map[string]any
	headers  map[string]http.Header
	queries  map[string]string
	failures map[string]int
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	reply := func(pattern string, data string) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			key := r.Method + " " + r.URL.Path
			f.headers[key] = r.Header.Clone()
			f.queries[key] = r.URL.RawQuery
			var body map[string]any
			if r.Body != nil {
				_ = json.NewDecoder(r.Body).Decode(&body)
			}
			f.bodies[key] = body
			status, failing := f.failures[key]
			f.mu.Unlock()

			w.Header().Set("Content-Type", "application/json")
			if failing {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"success":false,"error":"obligation x: not found"}`))
				return
			}
			_, _ = w.Write([]byte(`{"success":true,"data":` + data + `}`))
		})
	}

	detail := `{"id":"o1","taxId":"t1","clientId":"c1","assignedTo":"Ana","dueDate":"2024-03-09T00:00:00-03:00","status":"pending","priority":"high",
		"tax":{"id":"t1","name":"DAS"},"client":{"id":"c1","name":"Padaria"},"calculatedDueDate":"2024-03-11T00:00:00-03:00"}`

	reply("GET /api/dashboard", `{"stats":{"totalClients":1,"activeClients":1,"totalObligations":3,"pendingObligations":2,"overdueObligations":1},
		"critical":[`+detail+`],"thisWeek":[],
		"productivity":{"completionRate":33.3,"onTimeRate":100,"averageCompletionTime":2,"byAssignee":{},"byMonth":{}},
		"topPending":[{"assignee":"Ana","count":2}]}`)
	reply("GET /api/dashboard/overdue", `[`+detail+`]`)
	reply("GET /api/reports/productivity", `{"metrics":{"completionRate":50,"onTimeRate":75,"averageCompletionTime":1.5,
		"byAssignee":{"Ana":{"completed":2,"onTime":1,"late":1}},"byMonth":{}},"topPending":[],"periodOnTimeRate":80}`)
	reply("POST /api/generation/run", `{"startedAt":"2024-03-13T06:00:00-03:00","taxesSeen":2,"chainsSeen":2,
		"created":[{"id":"o9","taxId":"t1","clientId":"c1","dueDate":"2024-04-22T00:00:00-03:00","status":"pending","priority":"medium"}],
		"upToDate":1,"duplicates":0,"failures":[{"taxId":"t2","taxName":"ISS","clientId":"c2","error":"boom"}]}`)
	reply("POST /api/recurrence/preview", `{"dates":["2024-04-22","2024-05-20"],"description":"Mensal - Todo dia 20","validation":{"valid":true,"warnings":["Meses devem estar entre 1 e 12"]}}`)
	reply("PATCH /api/obligations/{id}/status", `{"id":"o1","taxId":"t1","clientId":"c1","dueDate":"2024-03-20T00:00:00-03:00","status":"completed","completedBy":"assistente"}`)
	return mux
}

func (f *fakeAPI) fail(key string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[key] = status
}

func (f *fakeAPI) request(key string) (map[string]any, http.Header, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[key], f.headers[key], f.queries[key]
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		bodies:   make(map[string]map[string]any),
		headers:  make(map[string]http.Header),
		queries:  make(map[string]string),
		failures: make(map[string]int),
	}
}

func connect(t *testing.T, api *fakeAPI) *mcpsdk.ClientSession {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	server := NewServer(NewClient(Config{
		APIURL:      srv.URL + "/",
		APIUsername: "admin",
		APIPassword: "secret",
		Performer:   "assistente",
		Timeout:     5 * time.Second,
	}), "test")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

// call invokes a tool and decodes its structured output into out.
func call(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any, out any) *mcpsdk.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if out != nil && !res.IsError {
		data, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, out))
	}
	return res
}

func TestListTools(t *testing.T) {
	session := connect(t, newFakeAPI())

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"fiscal_dashboard",
		"fiscal_critical",
		"fiscal_overdue",
		"fiscal_productivity",
		"fiscal_run_generation",
		"fiscal_preview_recurrence",
		"fiscal_complete_obligation",
	}, names)
}

func TestDashboardTool(t *testing.T) {
	api := newFakeAPI()
	session := connect(t, api)

	var out DashboardOutput
	res := call(t, session, "fiscal_dashboard", map[string]any{}, &out)
	require.False(t, res.IsError)

	assert.Equal(t, 1, out.Stats.OverdueObligations)
	require.Len(t, out.Critical, 1)
	c := out.Critical[0]
	assert.Equal(t, "DAS", c.Tax)
	assert.Equal(t, "Padaria", c.Client)
	assert.Equal(t, "2024-03-09", c.DueDate)
	assert.Equal(t, "2024-03-11", c.CalculatedDueDate)
	assert.Equal(t, "overdue", c.Status)
	assert.Empty(t, out.ThisWeek)
	assert.InDelta(t, 33.3, out.CompletionRate, 0.001)

	_, header, _ := api.request("GET /api/dashboard")
	user, pass, ok := (&http.Request{Header: header}).BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "admin", user)
	assert.Equal(t, "secret", pass)
}

func TestCriticalAndOverdueTools(t *testing.T) {
	session := connect(t, newFakeAPI())

	var critical, overdue ObligationsOutput
	call(t, session, "fiscal_critical", map[string]any{}, &critical)
	call(t, session, "fiscal_overdue", map[string]any{}, &overdue)

	require.Len(t, critical.Obligations, 1)
	require.Len(t, overdue.Obligations, 1)
	assert.Equal(t, "o1", overdue.Obligations[0].ID)
	assert.Equal(t, "Ana", overdue.Obligations[0].AssignedTo)
}

func TestProductivityTool(t *testing.T) {
	api := newFakeAPI()
	session := connect(t, api)

	var out ProductivityOutput
	call(t, session, "fiscal_productivity", map[string]any{"start": "2024-03-01", "end": "2024-03-31"}, &out)

	_, _, query := api.request("GET /api/reports/productivity")
	assert.Equal(t, "end=2024-03-31&start=2024-03-01", query)
	require.NotNil(t, out.PeriodOnTimeRate)
	assert.Equal(t, 80.0, *out.PeriodOnTimeRate)
	assert.Equal(t, 2, out.ByAssignee["Ana"].Completed)
}

func TestRunGenerationTool(t *testing.T) {
	session := connect(t, newFakeAPI())

	var out GenerationOutput
	call(t, session, "fiscal_run_generation", map[string]any{}, &out)

	require.Len(t, out.Created, 1)
	assert.Equal(t, "2024-04-22", out.Created[0].DueDate)
	assert.Equal(t, 1, out.UpToDate)
	assert.Equal(t, []string{"ISS (cliente c2): boom"}, out.Failures)
}

func TestPreviewRecurrenceTool(t *testing.T) {
	api := newFakeAPI()
	session := connect(t, api)

	var out PreviewOutput
	call(t, session, "fiscal_preview_recurrence", map[string]any{"type": "Monthly", "dayOfMonth": 20, "count": 2}, &out)

	assert.Equal(t, []string{"2024-04-22", "2024-05-20"}, out.Dates)
	assert.Equal(t, "Mensal - Todo dia 20", out.Description)
	assert.True(t, out.Valid)
	assert.Equal(t, []string{"Meses devem estar entre 1 e 12"}, out.Warnings)

	body, _, _ := api.request("POST /api/recurrence/preview")
	rule, ok := body["rule"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "monthly", rule["type"])
	assert.Equal(t, 20.0, rule["dayOfMonth"])
}

func TestCompleteObligationTool(t *testing.T) {
	api := newFakeAPI()
	session := connect(t, api)

	var out ObligationSummary
	res := call(t, session, "fiscal_complete_obligation", map[string]any{"id": "o1"}, &out)
	require.False(t, res.IsError)
	assert.Equal(t, "completed", out.Status)
	body, header, _ := api.request("PATCH /api/obligations/o1/status")
	assert.Equal(t, map[string]any{"status": "completed"}, body)
	assert.Equal(t, "assistente", header.Get("X-Performed-By"))

	api.fail("PATCH /api/obligations/missing/status", http.StatusNotFound)
	res = call(t, session, "fiscal_complete_obligation", map[string]any{"id": "missing"}, nil)
	assert.True(t, res.IsError)
}

func TestClientReportsAPIErrors(t *testing.T) {
	api := newFakeAPI()
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	api.fail("GET /api/dashboard/overdue", http.StatusUnauthorized)
	c := NewClient(Config{APIURL: srv.URL, Timeout: time.Second})

	err := c.get(context.Background(), "/api/dashboard/overdue", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestSummaryStatusUsesClock(t *testing.T) {
	tl := &tools{now: func() time.Time { return time.Date(2024, 3, 8, 9, 0, 0, 0, brt) }}
	var snap snapshot
	require.NoError(t, json.Unmarshal([]byte(`{"critical":[{"id":"o1","dueDate":"2024-03-09T00:00:00-03:00","status":"pending"}]}`), &snap))

	out := tl.detailed(snap.Critical)
	require.Len(t, out, 1)
	assert.Equal(t, "pending", out[0].Status)
}
