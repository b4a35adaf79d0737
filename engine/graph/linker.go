package graph

import (
	"context"
	"errors"

	"github.com/FinGraphAI/fingraph-mvp/engine/domain"
)

// errNoRecord signals a write that should have returned a row but did not.
var errNoRecord = errors.New("no record returned")

// wrapStore tags err as a store failure unless it already carries a category.
func wrapStore(op string, err error) error {
	var se *domain.StoreError
	if errors.As(err, &se) {
		return err
	}
	if domain.NotFound(err) {
		return err
	}
	return domain.NewStoreError(op, err)
}

// LinkUser merges SHARED_EMAIL and SHARED_PHONE edges from the given user to
// every other user with an equal identity attribute. Safe to call repeatedly:
// MERGE on an undirected pattern never duplicates an existing edge.
//
// The two passes run sequentially as separate writes; a failure in the second
// leaves the first committed (best-effort, matching entity creation).
func (g *GraphStore) LinkUser(ctx context.Context, id int64) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)
	if err := linkUserEdges(ctx, sess, id); err != nil {
		return wrapStore("link user", err)
	}
	return nil
}

// LinkTransaction merges SHARED_DEVICE edges from the given transaction to
// every other transaction with an equal deviceId.
func (g *GraphStore) LinkTransaction(ctx context.Context, id int64) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)
	if err := linkTransactionEdges(ctx, sess, id); err != nil {
		return wrapStore("link transaction", err)
	}
	return nil
}

func linkUserEdges(ctx context.Context, sess CypherSession, id int64) error {
	// Full scan over same-labeled nodes: O(n) per insert. Fine at this
	// scale; an attribute index is the upgrade path.
	if _, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		cypher := `MATCH (u:User), (o:User)
		           WHERE id(u) = $id AND o.email = u.email AND id(o) <> $id
		           MERGE (u)-[:SHARED_EMAIL]-(o)`
		return tx.Run(ctx, cypher, map[string]any{"id": id})
	}); err != nil {
		return err
	}
	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		cypher := `MATCH (u:User), (o:User)
		           WHERE id(u) = $id AND o.phone = u.phone AND id(o) <> $id
		           MERGE (u)-[:SHARED_PHONE]-(o)`
		return tx.Run(ctx, cypher, map[string]any{"id": id})
	})
	return err
}

func linkTransactionEdges(ctx context.Context, sess CypherSession, id int64) error {
	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		cypher := `MATCH (t:Transaction), (o:Transaction)
		           WHERE id(t) = $id AND o.deviceId = t.deviceId AND id(o) <> $id
		           MERGE (t)-[:SHARED_DEVICE]-(o)`
		return tx.Run(ctx, cypher, map[string]any{"id": id})
	})
	return err
}
