package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

type mockResult struct {
	recs []*neo4j.Record
	idx  int
	err  error
}

func newMockResult(recs ...*neo4j.Record) *mockResult {
	return &mockResult{recs: recs}
}

func (r *mockResult) Next(_ context.Context) bool {
	if r.idx < len(r.recs) {
		r.idx++
		return true
	}
	return false
}

func (r *mockResult) Record() *neo4j.Record { return r.recs[r.idx-1] }
func (r *mockResult) Err() error            { return r.err }

// scriptedSession hands out queued results in Run-call order and records
// every query with its params. Runs past the end of the script yield empty
// results. ExecuteWrite reuses the same script.
type scriptedSession struct {
	script   []CypherResult
	queries  []string
	params   []map[string]any
	runErr   error
	writeErr error
}

func (s *scriptedSession) Run(_ context.Context, cypher string, params map[string]any) (CypherResult, error) {
	s.queries = append(s.queries, cypher)
	s.params = append(s.params, params)
	if s.runErr != nil {
		return nil, s.runErr
	}
	if len(s.script) == 0 {
		return newMockResult(), nil
	}
	res := s.script[0]
	s.script = s.script[1:]
	return res, nil
}

func (s *scriptedSession) ExecuteWrite(_ context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	return work(s)
}

func (s *scriptedSession) Close(_ context.Context) error { return nil }

type mockOpener struct {
	session CypherSession
}

func (o *mockOpener) OpenSession(_ context.Context) CypherSession { return o.session }

func newScriptedStore(script ...CypherResult) (*GraphStore, *scriptedSession) {
	sess := &scriptedSession{script: script}
	return NewWithOpener(&mockOpener{session: sess}), sess
}

// autoIDSession answers every Run with a single {"id": n} record, n
// incrementing from next. Enough for any sequence of creates and links.
type autoIDSession struct {
	next    int64
	queries []string
	params  []map[string]any
}

func (s *autoIDSession) Run(_ context.Context, cypher string, params map[string]any) (CypherResult, error) {
	s.queries = append(s.queries, cypher)
	s.params = append(s.params, params)
	res := newMockResult(rec([]string{"id"}, s.next))
	s.next++
	return res, nil
}

func (s *autoIDSession) ExecuteWrite(_ context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return work(s)
}

func (s *autoIDSession) Close(_ context.Context) error { return nil }

func userID(n int64) *int64 { return &n }

// --- record builders ---

func rec(keys []string, values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func idRec(id int64) *neo4j.Record {
	return rec([]string{"id"}, id)
}

// userNodeRec is the `id(n) AS id, n` projection the generic repo reads.
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

var txRecKeys = []string{"id", "fromId", "toId", "amt", "currency", "ts", "desc", "deviceId"}

func txRec(id, from, to int64, amt float64, currency, ts, desc, deviceID string) *neo4j.Record {
	return rec(txRecKeys, id, from, to, amt, currency, ts, desc, deviceID)
}

// relTxRec prefixes a tx row with the `type(r) AS rel` column.
func relTxRec(rel string, id, from, to int64, amt float64, currency, ts, desc, deviceID string) *neo4j.Record {
	return rec(append([]string{"rel"}, txRecKeys...),
		rel, id, from, to, amt, currency, ts, desc, deviceID)
}

func relUserRec(relType string, id int64, name, email, phone string) *neo4j.Record {
	return rec([]string{"rel", "id", "name", "email", "phone"}, relType, id, name, email, phone)
}
