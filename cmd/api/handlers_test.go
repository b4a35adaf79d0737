package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/FinGraphAI/fingraph-mvp/engine/domain"
	"github.com/FinGraphAI/fingraph-mvp/engine/graph"
	"github.com/FinGraphAI/fingraph-mvp/pkg/metrics"
)

// --- scripted store fakes (mirrors the graph package's test session) ---

type fakeResult struct {
	recs []*neo4j.Record
	idx  int
}

func result(recs ...*neo4j.Record) *fakeResult { return &fakeResult{recs: recs} }

func (r *fakeResult) Next(_ context.Context) bool {
	if r.idx < len(r.recs) {
		r.idx++
		return true
	}
	return false
}

func (r *fakeResult) Record() *neo4j.Record { return r.recs[r.idx-1] }
func (r *fakeResult) Err() error            { return nil }

type fakeSession struct {
	script  []graph.CypherResult
	queries []string
	params  []map[string]any
}

func (s *fakeSession) Run(_ context.Context, cypher string, params map[string]any) (graph.CypherResult, error) {
	s.queries = append(s.queries, cypher)
	s.params = append(s.params, params)
	if len(s.script) == 0 {
		return result(), nil
	}
	res := s.script[0]
	s.script = s.script[1:]
	return res, nil
}

func (s *fakeSession) ExecuteWrite(_ context.Context, work func(tx graph.CypherRunner) (any, error)) (any, error) {
	return work(s)
}

func (s *fakeSession) Close(_ context.Context) error { return nil }

type fakeOpener struct{ sess *fakeSession }

func (o *fakeOpener) OpenSession(_ context.Context) graph.CypherSession { return o.sess }

func newTestServer(script ...graph.CypherResult) (*server, *fakeSession) {
	sess := &fakeSession{script: script}
	store := graph.NewWithOpener(&fakeOpener{sess: sess})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newServer(store, log, metrics.New(), nil, 100), sess
}

func rec(keys []string, values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func userNodeRec(id int64, name, email, phone string) *neo4j.Record {
	node := dbtype.Node{
		Id:     id,
		Labels: []string{"User"},
		Props:  map[string]any{"name": name, "email": email, "phone": phone},
	}
	return rec([]string{"id", "n"}, id, node)
}

func userColsRec(id int64, name, email, phone string) *neo4j.Record {
	return rec([]string{"id", "name", "email", "phone"}, id, name, email, phone)
}

func do(t *testing.T, srv *server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

// --- tests ---

func TestHealth(t *testing.T) {
	srv, _ := newTestServer()
	w := do(t, srv, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[map[string]string](t, w); got["status"] != "ok" {
		t.Errorf("body = %v", got)
	}
}

func TestCreateUser(t *testing.T) {
	srv, sess := newTestServer(result(rec([]string{"id"}, int64(7))))
	w := do(t, srv, http.MethodPost, "/api/users",
		`{"name":"Alice","email":"alice@example.com","phone":"555-0001"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if got := decode[map[string]int64](t, w); got["id"] != 7 {
		t.Errorf("id = %d", got["id"])
	}
	// Create plus the two similarity link passes.
	if len(sess.queries) != 3 {
		t.Errorf("expected 3 queries, got %d", len(sess.queries))
	}
}

func TestCreateUser_InvalidBody(t *testing.T) {
	srv, sess := newTestServer()
	w := do(t, srv, http.MethodPost, "/api/users", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if len(sess.queries) != 0 {
		t.Errorf("store should not be touched, got %d queries", len(sess.queries))
	}
}

func TestCreateUser_MissingField(t *testing.T) {
	srv, _ := newTestServer()
	w := do(t, srv, http.MethodPost, "/api/users", `{"name":"Alice","phone":"555-0001"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[map[string]string](t, w); !strings.Contains(got["error"], "email") {
		t.Errorf("error = %q", got["error"])
	}
}

func TestCreateTransaction(t *testing.T) {
	srv, _ := newTestServer(result(rec([]string{"id"}, int64(42))))
	w := do(t, srv, http.MethodPost, "/api/transactions",
		`{"fromUserId":1,"toUserId":2,"amount":99.5,"timestamp":"2025-01-01T00:00:00Z"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if got := decode[map[string]int64](t, w); got["id"] != 42 {
		t.Errorf("id = %d", got["id"])
	}
}

func TestGetUser(t *testing.T) {
	srv, _ := newTestServer(result(userNodeRec(3, "Bob", "bob@example.com", "555-0002")))
	w := do(t, srv, http.MethodGet, "/api/users/3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	u := decode[domain.User](t, w)
	if u.ID != 3 || u.Name != "Bob" {
		t.Errorf("user = %+v", u)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	srv, _ := newTestServer(result())
	w := do(t, srv, http.MethodGet, "/api/users/99", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[map[string]string](t, w); got["error"] == "" {
		t.Errorf("missing error message: %s", w.Body)
	}
}

func TestGetUser_BadID(t *testing.T) {
	srv, _ := newTestServer()
	w := do(t, srv, http.MethodGet, "/api/users/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestListUsers_PlainArray(t *testing.T) {
	srv, _ := newTestServer(result(
		userNodeRec(1, "Alice", "a@x.com", "1"),
		userNodeRec(2, "Bob", "b@x.com", "2"),
	))
	w := do(t, srv, http.MethodGet, "/api/users", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	users := decode[[]domain.User](t, w)
	if len(users) != 2 || users[1].Name != "Bob" {
		t.Errorf("users = %+v", users)
	}
}

func TestListUsers_Envelope(t *testing.T) {
	srv, _ := newTestServer(
		result(rec([]string{"total"}, int64(3))),
		result(
			userColsRec(1, "Alice", "a@x.com", "1"),
			userColsRec(2, "Bob", "b@x.com", "2"),
		),
	)
	w := do(t, srv, http.MethodGet, "/api/users?page=1&pageSize=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	page := decode[domain.Page[domain.User]](t, w)
	if page.Total != 3 || page.TotalPages != 2 || len(page.Data) != 2 {
		t.Errorf("page = %+v", page)
	}
}

func TestListTransactions_FilterParams(t *testing.T) {
	srv, sess := newTestServer(
		result(rec([]string{"total"}, int64(0))),
		result(),
	)
	w := do(t, srv, http.MethodGet,
		"/api/transactions?page=1&pageSize=10&minAmount=50&currency=EUR&deviceId=dev-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	p := sess.params[0]
	if p["minAmount"] != 50.0 || p["currency"] != "EUR" || p["deviceQ"] != "dev-1" {
		t.Errorf("filter params = %v", p)
	}
	if _, ok := p["maxAmount"]; ok {
		t.Error("maxAmount should be absent when not supplied")
	}
}

func TestListTransactions_EmptyPlainArray(t *testing.T) {
	srv, _ := newTestServer(result())
	w := do(t, srv, http.MethodGet, "/api/transactions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %q, want empty array", body)
	}
}

func TestCurrencies(t *testing.T) {
	srv, _ := newTestServer(result(
		rec([]string{"currency"}, "USD"),
		rec([]string{"currency"}, "EUR"),
	))
	w := do(t, srv, http.MethodGet, "/api/transactions/currencies", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[[]string](t, w)
	if len(got) != 2 || got[0] != "EUR" {
		t.Errorf("currencies = %v", got)
	}
}

func TestUserRelationships(t *testing.T) {
	srv, _ := newTestServer(
		result(userNodeRec(1, "Alice", "a@x.com", "1")),
		result(rec([]string{"rel", "id", "name", "email", "phone"},
			"SHARED_EMAIL", int64(2), "Carol", "a@x.com", "3")),
		result(), // sent
		result(), // received
	)
	w := do(t, srv, http.MethodGet, "/api/relationships/user/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	// Connection.Node is polymorphic (user or transaction), so decode it
	// raw and re-decode per expected shape.
	var body struct {
		User        domain.User `json:"user"`
		Connections []struct {
			Node         json.RawMessage `json:"node"`
			Relationship string          `json:"relationship"`
		} `json:"connections"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.User.Name != "Alice" {
		t.Errorf("user = %+v", body.User)
	}
	if len(body.Connections) != 1 || body.Connections[0].Relationship != "SHARED_EMAIL" {
		t.Fatalf("connections = %+v", body.Connections)
	}
	var linked domain.User
	if err := json.Unmarshal(body.Connections[0].Node, &linked); err != nil {
		t.Fatalf("decode connection node: %v", err)
	}
	if linked.ID != 2 || linked.Name != "Carol" {
		t.Errorf("linked user = %+v", linked)
	}
}

func TestShortestPath_NotFound(t *testing.T) {
	srv, _ := newTestServer(result())
	w := do(t, srv, http.MethodGet, "/api/analytics/shortest-path/users/1/2", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestShortestPath(t *testing.T) {
	srv, _ := newTestServer(result(rec(
		[]string{"fromLabel", "fromId", "fromName", "fromDeviceId",
			"toLabel", "toId", "toName", "toDeviceId", "relationship"},
		"User", int64(1), "Alice", "",
		"Transaction", int64(5), "", "dev-1", "SENT",
	)))
	w := do(t, srv, http.MethodGet, "/api/analytics/shortest-path/users/1/2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var body struct {
		Segments []domain.PathSegment `json:"segments"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Segments) != 1 || body.Segments[0].ToNode.DeviceID != "dev-1" {
		t.Errorf("segments = %+v", body.Segments)
	}
}

func TestClusters(t *testing.T) {
	srv, _ := newTestServer(
		result(
			rec([]string{"id"}, int64(10)),
			rec([]string{"id"}, int64(11)),
		),
		result(rec([]string{"a", "b"}, int64(10), int64(11))),
	)
	w := do(t, srv, http.MethodGet, "/api/analytics/transaction-clusters", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Clusters []domain.ClusterEntry `json:"clusters"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Clusters) != 2 || body.Clusters[1].ClusterID != 10 {
		t.Errorf("clusters = %+v", body.Clusters)
	}
	if rendered := srv.reg.Render(); !strings.Contains(rendered, "transaction_clusters 1") {
		t.Errorf("cluster gauge not recorded:\n%s", rendered)
	}
}

func TestStatistics(t *testing.T) {
	srv, _ := newTestServer(
		result(rec([]string{"users", "txs"}, int64(5), int64(7))),
		result(rec([]string{"rels"}, int64(26))),
	)
	w := do(t, srv, http.MethodGet, "/api/analytics/statistics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	stats := decode[domain.Statistics](t, w)
	if stats.UserCount != 5 || stats.RelationshipCount != 26 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestExportJSON_EmptyGraph(t *testing.T) {
	srv, _ := newTestServer(
		result(rec([]string{"m"}, nil)),
		result(rec([]string{"m"}, nil)),
		result(rec([]string{"m"}, nil)),
	)
	w := do(t, srv, http.MethodGet, "/api/export/json", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"nodes":[]`) || !strings.Contains(body, `"relationships":[]`) {
		t.Errorf("body = %s", body)
	}
}

func TestExportCSV(t *testing.T) {
	srv, _ := newTestServer(
		result(rec([]string{"m"}, int64(0))),
		result(rec([]string{"id", "type", "props"},
			int64(0), "User", map[string]any{"name": "Alice"})),
		result(rec([]string{"m"}, int64(0))),
		result(rec([]string{"src", "srcType", "rel", "tgt", "tgtType"},
			int64(0), "User", "SENT", int64(1), "Transaction")),
		result(rec([]string{"m"}, nil)), // no transactions for derived edges
	)
	w := do(t, srv, http.MethodGet, "/api/export/csv", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != "attachment; filename=graph.csv" {
		t.Errorf("Content-Disposition = %q", got)
	}
	body := w.Body.String()
	for _, want := range []string{
		"# Nodes\n",
		"id,type,properties\n",
		`0,User,"{""name"":""Alice""}"`,
		"\n# Relationships\n",
		"source_id,source_type,relationship,target_id,target_type\n",
		"0,User,SENT,1,Transaction",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestExportCSV_EmptyGraphStillWritesHeaders(t *testing.T) {
	srv, _ := newTestServer(
		result(rec([]string{"m"}, nil)),
		result(rec([]string{"m"}, nil)),
		result(rec([]string{"m"}, nil)),
	)
	w := do(t, srv, http.MethodGet, "/api/export/csv", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "# Nodes\n") || !strings.Contains(body, "# Relationships\n") {
		t.Errorf("headers missing:\n%s", body)
	}
}

func TestExportCSV_RateLimited(t *testing.T) {
	srv, _ := newTestServer()
	for srv.exportGate.Allow() {
	}
	w := do(t, srv, http.MethodGet, "/api/export/csv", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}
}
