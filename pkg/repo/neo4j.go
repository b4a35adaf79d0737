package repo

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jRepo is a generic Neo4j-backed read repository. Nodes are matched by
// their store-assigned id; each row is projected through fromRecord, which
// receives a record with columns `id` and `n`.
type Neo4jRepo[T any] struct {
	open       SessionFunc
	label      string
	fromRecord func(*neo4j.Record) (T, error)
}

// NewNeo4jRepo creates a repository for nodes with the given label.
func NewNeo4jRepo[T any](
	open SessionFunc,
	label string,
	fromRecord func(*neo4j.Record) (T, error),
) *Neo4jRepo[T] {
	return &Neo4jRepo[T]{open: open, label: label, fromRecord: fromRecord}
}

// Compile-time interface check.
var _ Reader[any] = (*Neo4jRepo[any])(nil)

// ErrNotFound is returned by Get when no node has the requested id.
// Callers usually translate it to a domain-level not-found error.
var ErrNotFound = fmt.Errorf("node not found")

func (r *Neo4jRepo[T]) Get(ctx context.Context, id int64) (T, error) {
	var zero T
	sess := r.open(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s) WHERE id(n) = $id RETURN id(n) AS id, n", r.label)
	result, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return zero, err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return zero, err
		}
		return zero, ErrNotFound
	}
	return r.fromRecord(result.Record())
}

func (r *Neo4jRepo[T]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	sess := r.open(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s) RETURN id(n) AS id, n ORDER BY id", r.label)
	params := map[string]any{}
	if opts.Limit > 0 {
		cypher += " SKIP $offset LIMIT $limit"
		params["offset"] = opts.Offset
		params["limit"] = opts.Limit
	}

	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	var items []T
	for result.Next(ctx) {
		item, err := r.fromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, result.Err()
}

func (r *Neo4jRepo[T]) Count(ctx context.Context) (int64, error) {
	sess := r.open(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS c", r.label)
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return 0, err
	}
	if !result.Next(ctx) {
		return 0, result.Err()
	}
	c, _ := result.Record().Get("c")
	n, _ := c.(int64)
	return n, nil
}
