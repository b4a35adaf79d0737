// Package graph implements the fraud property-graph engine on top of Neo4j:
// entity creation with identity linking, relationship resolution, shortest
// paths, transaction clustering, and bounded-memory bulk export.
package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// CypherResult is the minimal read interface over a query result.
type CypherResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// CypherRunner executes a single Cypher statement.
type CypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error)
}

// CypherSession is a store session: ad-hoc reads via Run, grouped writes via
// ExecuteWrite.
type CypherSession interface {
	CypherRunner
	ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error)
	Close(ctx context.Context) error
}

// SessionOpener opens store sessions. Production code uses the Neo4j driver;
// tests substitute fakes.
type SessionOpener interface {
	OpenSession(ctx context.Context) CypherSession
}

// GraphStore provides all graph operations for the service.
type GraphStore struct {
	opener SessionOpener
	users  *userRepo
}

// New creates a GraphStore backed by a Neo4j driver.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return NewWithOpener(&driverOpener{driver: driver})
}

// NewWithOpener creates a GraphStore over an arbitrary session opener.
func NewWithOpener(opener SessionOpener) *GraphStore {
	return &GraphStore{
		opener: opener,
		users:  newUserRepo(opener),
	}
}

// --- Neo4j adapters ---

type driverOpener struct {
	driver neo4j.DriverWithContext
}

func (o *driverOpener) OpenSession(ctx context.Context) CypherSession {
	return &driverSession{sess: o.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

type driverSession struct {
	sess neo4j.SessionWithContext
}

func (s *driverSession) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	res, err := s.sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return &driverResult{res: res}, nil
}

func (s *driverSession) ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return s.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(&txRunner{ctx: ctx, tx: tx})
	})
}

func (s *driverSession) Close(ctx context.Context) error {
	return s.sess.Close(ctx)
}

type txRunner struct {
	ctx context.Context
	tx  neo4j.ManagedTransaction
}

func (r *txRunner) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	res, err := r.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return &driverResult{res: res}, nil
}

type driverResult struct {
	res neo4j.ResultWithContext
}

func (r *driverResult) Next(ctx context.Context) bool { return r.res.Next(ctx) }
func (r *driverResult) Record() *neo4j.Record         { return r.res.Record() }
func (r *driverResult) Err() error                    { return r.res.Err() }
