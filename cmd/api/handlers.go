package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/FinGraphAI/fingraph-mvp/engine/domain"
	"github.com/FinGraphAI/fingraph-mvp/engine/graph"
	"github.com/FinGraphAI/fingraph-mvp/pkg/fn"
	"github.com/FinGraphAI/fingraph-mvp/pkg/metrics"
	"github.com/FinGraphAI/fingraph-mvp/pkg/natsutil"
	"github.com/FinGraphAI/fingraph-mvp/pkg/resilience"
)

// NATS subjects for entity-created events.
const (
	subjectUserCreated        = "users.created"
	subjectTransactionCreated = "transactions.created"
)

// entityCreatedEvent is published after an entity and its similarity edges
// are committed.
type entityCreatedEvent struct {
	ID int64 `json:"id"`
}

type server struct {
	store *graph.GraphStore
	log   *slog.Logger
	reg   *metrics.Registry
	nc    *nats.Conn // nil when events are disabled

	exportBatch int
	// exportGate caps concurrent full-graph CSV exports; exportPace spaces
	// batch handoff so one export cannot monopolize the store.
	exportGate *resilience.Limiter
	exportPace *rate.Limiter
}

func newServer(store *graph.GraphStore, log *slog.Logger, reg *metrics.Registry, nc *nats.Conn, exportBatch int) *server {
	return &server{
		store:       store,
		log:         log,
		reg:         reg,
		nc:          nc,
		exportBatch: exportBatch,
		exportGate:  resilience.NewLimiter(resilience.LimiterOpts{Rate: 0.5, Burst: 2}),
		exportPace:  rate.NewLimiter(rate.Limit(100), 1),
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/users", s.handleCreateUser)
	mux.HandleFunc("GET /api/users", s.handleListUsers)
	mux.HandleFunc("GET /api/users/{id}", s.handleGetUser)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/currencies", s.handleCurrencies)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)

	mux.HandleFunc("GET /api/relationships/user/{id}", s.handleUserRelationships)
	mux.HandleFunc("GET /api/relationships/transaction/{id}", s.handleTransactionRelationships)

	mux.HandleFunc("GET /api/analytics/shortest-path/users/{from}/{to}", s.handleShortestPath)
	mux.HandleFunc("GET /api/analytics/transaction-clusters", s.handleClusters)
	mux.HandleFunc("GET /api/analytics/statistics", s.handleStatistics)

	mux.HandleFunc("GET /api/export/json", s.handleExportJSON)
	mux.HandleFunc("GET /api/export/csv", s.handleExportCSV)

	return mux
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondErr maps domain errors to status codes: not-found 404, validation
// 400, everything else 500 without leaking internals.
func (s *server) respondErr(w http.ResponseWriter, err error) {
	switch {
	case domain.NotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func (s *server) publishEvent(r *http.Request, subject string, id int64) {
	if s.nc == nil {
		return
	}
	// Fire-and-forget: a broker outage must not fail the request.
	if err := natsutil.Publish(r.Context(), s.nc, subject, entityCreatedEvent{ID: id}); err != nil {
		s.log.Warn("event publish failed", "subject", subject, "err", err)
	}
}

// --- handlers ---

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in domain.NewUserInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.store.CreateUser(r.Context(), in)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	s.reg.Counter("users_created_total", "Users created").Inc()
	s.publishEvent(r, subjectUserCreated, id)
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	if page > 0 && pageSize > 0 {
		result, err := s.store.ListUsersPage(r.Context(), page, pageSize, q.Get("search"))
		if err != nil {
			s.respondErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	u, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in domain.NewTransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.store.CreateTransaction(r.Context(), in)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	s.reg.Counter("transactions_created_total", "Transactions created").Inc()
	s.publishEvent(r, subjectTransactionCreated, id)
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	if page > 0 && pageSize > 0 {
		filter := domain.TxFilter{
			Currency:    q.Get("currency"),
			StartDate:   q.Get("startDate"),
			EndDate:     q.Get("endDate"),
			Description: q.Get("description"),
			DeviceID:    q.Get("deviceId"),
		}
		if v, err := strconv.ParseFloat(q.Get("minAmount"), 64); err == nil {
			filter.MinAmount = &v
		}
		if v, err := strconv.ParseFloat(q.Get("maxAmount"), 64); err == nil {
			filter.MaxAmount = &v
		}

		result, err := s.store.ListTransactionsPage(r.Context(), page, pageSize, filter)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	txs, err := s.store.ListTransactions(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := s.store.ListCurrencies(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if currencies == nil {
		currencies = []string{}
	}
	writeJSON(w, http.StatusOK, currencies)
}

func (s *server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	tx, err := s.store.GetTransaction(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *server) handleUserRelationships(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, conns, err := s.store.ResolveUser(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        user,
		"connections": conns,
	})
}

func (s *server) handleTransactionRelationships(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	tx, conns, err := s.store.ResolveTransaction(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transaction": tx,
		"connections": conns,
	})
}

func (s *server) handleShortestPath(w http.ResponseWriter, r *http.Request) {
	from, err := pathID(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	to, err := pathID(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	segments, err := s.store.ShortestPath(r.Context(), from, to)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"segments": segments})
}

func (s *server) handleClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := s.store.ClusterTransactions(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if clusters == nil {
		clusters = []domain.ClusterEntry{}
	}

	groups := fn.GroupBy(clusters, func(e domain.ClusterEntry) int64 { return e.ClusterID })
	s.reg.Gauge("transaction_clusters", "Distinct transaction clusters at last computation").
		Set(int64(len(groups)))

	writeJSON(w, http.StatusOK, map[string]any{"clusters": clusters})
}

func (s *server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Statistics(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.ExportAll(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleExportCSV streams the whole graph as a two-section CSV. Batches are
// flushed as they arrive so memory stays bounded by the batch size.
func (s *server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if !s.exportGate.Allow() {
		writeError(w, http.StatusTooManyRequests, "export capacity exhausted")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=graph.csv")

	flusher, _ := w.(http.Flusher)
	cw := csv.NewWriter(w)

	fmt.Fprint(w, "# Nodes\n")
	fmt.Fprint(w, "id,type,properties\n")

	wroteRelHeader := false
	relHeader := func() {
		cw.Flush()
		fmt.Fprint(w, "\n# Relationships\n")
		fmt.Fprint(w, "source_id,source_type,relationship,target_id,target_type\n")
		wroteRelHeader = true
	}

	err := s.store.ExportGraph(r.Context(), s.exportBatch, func(b graph.ExportBatch) error {
		if len(b.Relationships) > 0 && !wroteRelHeader {
			relHeader()
		}
		for _, row := range fn.Map(b.Nodes, nodeRow) {
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		for _, row := range fn.Map(b.Relationships, relRow) {
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		s.reg.Counter("export_batches_total", "Export batches streamed").Inc()
		return s.exportPace.Wait(r.Context())
	})
	if err != nil {
		// Headers are long gone; all we can do is log and stop the stream.
		s.log.Error("csv export aborted", "err", err)
		return
	}

	if !wroteRelHeader {
		relHeader()
	}
	cw.Flush()
}

func nodeRow(n domain.GraphNode) []string {
	props, err := json.Marshal(n.Properties)
	if err != nil {
		props = []byte("{}")
	}
	return []string{
		strconv.FormatInt(n.ID, 10),
		n.Type,
		string(props),
	}
}

func relRow(rel domain.GraphRelationship) []string {
	return []string{
		strconv.FormatInt(rel.SourceID, 10),
		rel.SourceType,
		rel.Relationship,
		strconv.FormatInt(rel.TargetID, 10),
		rel.TargetType,
	}
}
