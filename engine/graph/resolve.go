package graph

import (
	"context"

	"github.com/FinGraphAI/fingraph-mvp/engine/domain"
)

// ResolveUser returns a user together with its direct typed neighbors:
// similarity-linked users and every transaction the user sent or received.
// Connection order is not specified.
func (g *GraphStore) ResolveUser(ctx context.Context, id int64) (domain.User, []domain.Connection, error) {
	user, err := g.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, nil, err
	}

	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	conns := []domain.Connection{}

	// Users reachable over similarity edges.
	res, err := sess.Run(ctx, `
		MATCH (u:User)-[r:SHARED_EMAIL|SHARED_PHONE]-(o:User)
		WHERE id(u) = $uid
		RETURN type(r) AS rel, id(o) AS id, o.name AS name, o.email AS email, o.phone AS phone`,
		map[string]any{"uid": id})
	if err != nil {
		return domain.User{}, nil, wrapStore("resolve user", err)
	}
	for res.Next(ctx) {
		rec := res.Record()
		conns = append(conns, domain.Connection{
			Node:         userFromColumns(rec, "id", "name", "email", "phone"),
			Relationship: recString(rec, "rel"),
		})
	}
	if err := res.Err(); err != nil {
		return domain.User{}, nil, wrapStore("resolve user", err)
	}

	// Transactions sent by the user.
	res, err = sess.Run(ctx, `
		MATCH (u1:User)-[r:SENT]->(t:Transaction)-[:RECEIVED_BY]->(u2:User)
		WHERE id(u1) = $uid
		RETURN type(r) AS rel, `+txColumns,
		map[string]any{"uid": id})
	if err != nil {
		return domain.User{}, nil, wrapStore("resolve user", err)
	}
	if err := appendTxConnections(ctx, res, &conns); err != nil {
		return domain.User{}, nil, wrapStore("resolve user", err)
	}

	// Transactions received by the user.
	res, err = sess.Run(ctx, `
		MATCH (u1:User)-[:SENT]->(t:Transaction)-[r:RECEIVED_BY]->(u2:User)
		WHERE id(u2) = $uid
		RETURN type(r) AS rel, `+txColumns,
		map[string]any{"uid": id})
	if err != nil {
		return domain.User{}, nil, wrapStore("resolve user", err)
	}
	if err := appendTxConnections(ctx, res, &conns); err != nil {
		return domain.User{}, nil, wrapStore("resolve user", err)
	}

	return user, conns, nil
}

// ResolveTransaction returns a transaction together with its sender and
// receiver, each present at most once.
func (g *GraphStore) ResolveTransaction(ctx context.Context, id int64) (domain.Transaction, []domain.Connection, error) {
	tx, err := g.GetTransaction(ctx, id)
	if err != nil {
		return domain.Transaction{}, nil, err
	}

	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	conns := []domain.Connection{}

	res, err := sess.Run(ctx, `
		MATCH (u:User)-[r:SENT]->(t:Transaction)
		WHERE id(t) = $txid
		RETURN type(r) AS rel, id(u) AS id, u.name AS name, u.email AS email, u.phone AS phone`,
		map[string]any{"txid": id})
	if err != nil {
		return domain.Transaction{}, nil, wrapStore("resolve transaction", err)
	}
	if res.Next(ctx) {
		rec := res.Record()
		conns = append(conns, domain.Connection{
			Node:         userFromColumns(rec, "id", "name", "email", "phone"),
			Relationship: recString(rec, "rel"),
		})
	}

	res, err = sess.Run(ctx, `
		MATCH (t:Transaction)-[r:RECEIVED_BY]->(u:User)
		WHERE id(t) = $txid
		RETURN type(r) AS rel, id(u) AS id, u.name AS name, u.email AS email, u.phone AS phone`,
		map[string]any{"txid": id})
	if err != nil {
		return domain.Transaction{}, nil, wrapStore("resolve transaction", err)
	}
	if res.Next(ctx) {
		rec := res.Record()
		conns = append(conns, domain.Connection{
			Node:         userFromColumns(rec, "id", "name", "email", "phone"),
			Relationship: recString(rec, "rel"),
		})
	}

	return tx, conns, nil
}

func appendTxConnections(ctx context.Context, res CypherResult, conns *[]domain.Connection) error {
	for res.Next(ctx) {
		rec := res.Record()
		*conns = append(*conns, domain.Connection{
			Node:         txFromColumns(rec),
			Relationship: recString(rec, "rel"),
		})
	}
	return res.Err()
}
