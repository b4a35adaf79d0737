package graph

import (
	"context"
	"sort"

	"github.com/FinGraphAI/fingraph-mvp/engine/domain"
)

// ClusterTransactions groups transactions into connected components of the
// co-transaction graph: two transactions are adjacent iff some user sent or
// received both. Components are found by breadth-first traversal over an
// adjacency list assembled from a single pairwise query; each component's
// cluster id is its minimum transaction id, so the result set is
// deterministic regardless of traversal order.
func (g *GraphStore) ClusterTransactions(ctx context.Context) ([]domain.ClusterEntry, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	ids, err := g.transactionIDs(ctx, sess)
	if err != nil {
		return nil, wrapStore("cluster transactions", err)
	}
	pairs, err := g.transactionPairs(ctx, sess)
	if err != nil {
		return nil, wrapStore("cluster transactions", err)
	}

	adj := make(map[int64][]int64, len(ids))
	for _, id := range ids {
		adj[id] = nil
	}
	for _, p := range pairs {
		adj[p[0]] = append(adj[p[0]], p[1])
		adj[p[1]] = append(adj[p[1]], p[0])
	}

	visited := make(map[int64]bool, len(ids))
	var clusters []domain.ClusterEntry

	for _, start := range ids {
		if visited[start] {
			continue
		}
		component := []int64{start}
		visited[start] = true
		for queue := []int64{start}; len(queue) > 0; {
			curr := queue[0]
			queue = queue[1:]
			for _, next := range adj[curr] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
					component = append(component, next)
				}
			}
		}

		clusterID := component[0]
		for _, id := range component {
			if id < clusterID {
				clusterID = id
			}
		}
		for _, id := range component {
			clusters = append(clusters, domain.ClusterEntry{TransactionID: id, ClusterID: clusterID})
		}
	}

	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].TransactionID < clusters[j].TransactionID
	})
	return clusters, nil
}

func (g *GraphStore) transactionIDs(ctx context.Context, sess CypherSession) ([]int64, error) {
	res, err := sess.Run(ctx, `MATCH (t:Transaction) RETURN id(t) AS id`, nil)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for res.Next(ctx) {
		ids = append(ids, recInt(res.Record(), "id"))
	}
	return ids, res.Err()
}

// transactionPairs returns each co-transaction edge once, as (lower, higher).
func (g *GraphStore) transactionPairs(ctx context.Context, sess CypherSession) ([][2]int64, error) {
	cypher := `
		MATCH (t1:Transaction)-[:SENT|RECEIVED_BY]-(u:User)-[:SENT|RECEIVED_BY]-(t2:Transaction)
		WHERE id(t1) < id(t2)
		RETURN id(t1) AS a, id(t2) AS b`
	res, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	var pairs [][2]int64
	for res.Next(ctx) {
		rec := res.Record()
		pairs = append(pairs, [2]int64{recInt(rec, "a"), recInt(rec, "b")})
	}
	return pairs, res.Err()
}
