// Package repo provides a small generic read repository over Neo4j nodes
// addressed by their native ids.
package repo

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Result is the minimal interface needed from a query result.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// Runner is the minimal interface needed from a store session.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
	Close(ctx context.Context) error
}

// SessionFunc opens a session. Tests substitute fakes.
type SessionFunc func(ctx context.Context) Runner

// Reader is a generic read-only repository keyed by native node id.
type Reader[T any] interface {
	Get(ctx context.Context, id int64) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Count(ctx context.Context) (int64, error)
}

// ListOpts controls pagination for List operations.
type ListOpts struct {
	Offset int
	Limit  int
}
