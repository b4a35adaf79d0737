package graph

import (
	"context"

	"github.com/FinGraphAI/fingraph-mvp/engine/domain"
)

// Statistics returns whole-graph counts for the dashboard.
func (g *GraphStore) Statistics(ctx context.Context) (domain.Statistics, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	var stats domain.Statistics

	res, err := sess.Run(ctx, `
		MATCH (u:User)
		OPTIONAL MATCH (t:Transaction)
		RETURN count(DISTINCT u) AS users, count(DISTINCT t) AS txs`, nil)
	if err != nil {
		return stats, wrapStore("statistics", err)
	}
	if res.Next(ctx) {
		rec := res.Record()
		stats.UserCount = recInt(rec, "users")
		stats.TransactionCount = recInt(rec, "txs")
	}
	if err := res.Err(); err != nil {
		return stats, wrapStore("statistics", err)
	}

	res, err = sess.Run(ctx, `MATCH ()-[r]->() RETURN count(r) AS rels`, nil)
	if err != nil {
		return stats, wrapStore("statistics", err)
	}
	if res.Next(ctx) {
		stats.RelationshipCount = recInt(res.Record(), "rels")
	}
	if err := res.Err(); err != nil {
		return stats, wrapStore("statistics", err)
	}
	return stats, nil
}

// NodeCounts returns node counts keyed by label, for metrics gauges.
func (g *GraphStore) NodeCounts(ctx context.Context) (map[string]int64, error) {
	return g.countsBy(ctx, `MATCH (n) RETURN labels(n)[0] AS key, count(n) AS count`)
}

// RelationshipCounts returns edge counts keyed by relationship type.
func (g *GraphStore) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	return g.countsBy(ctx, `MATCH ()-[r]->() RETURN type(r) AS key, count(r) AS count`)
}

func (g *GraphStore) countsBy(ctx context.Context, cypher string) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, wrapStore("counts", err)
	}
	out := map[string]int64{}
	for res.Next(ctx) {
		rec := res.Record()
		out[recString(rec, "key")] = recInt(rec, "count")
	}
	if err := res.Err(); err != nil {
		return nil, wrapStore("counts", err)
	}
	return out, nil
}
