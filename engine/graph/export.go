package graph

import (
	"context"
	"time"

	"github.com/FinGraphAI/fingraph-mvp/engine/domain"
)

// DefaultExportBatchSize is the id-range window used when the caller does not
// choose one.
const DefaultExportBatchSize = 10000

// ExportBatch is one chunk of a graph export. Exactly one of the two slices
// is populated per batch.
type ExportBatch struct {
	Nodes         []domain.GraphNode         `json:"nodes,omitempty"`
	Relationships []domain.GraphRelationship `json:"relationships,omitempty"`
}

// GraphExport is a fully buffered export, for small graphs and the JSON
// endpoint.
type GraphExport struct {
	Nodes         []domain.GraphNode         `json:"nodes"`
	Relationships []domain.GraphRelationship `json:"relationships"`
}

// ExportGraph streams the whole graph to emit in bounded batches: first every
// node, then every stored edge, then derived transaction-transaction
// similarity edges (equal ip → SHARED_IP, else equal deviceId →
// SHARED_DEVICE).
//
// Rows are fetched in fixed-size id-range windows bounded by the maximum id
// sampled at the start of each phase, so peak memory is O(batchSize), not
// O(graph). Windows that match no rows are skipped but the cursor still
// advances. emit is called synchronously; the next window is not queried
// until it returns, so the consumer paces the producer. Each window sees the
// store as of its own query: mutations during an export land in later
// windows or not at all.
func (g *GraphStore) ExportGraph(ctx context.Context, batchSize int, emit func(ExportBatch) error) error {
	if batchSize <= 0 {
		batchSize = DefaultExportBatchSize
	}

	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	if err := g.exportNodes(ctx, sess, batchSize, emit); err != nil {
		return wrapStore("export nodes", err)
	}
	if err := g.exportEdges(ctx, sess, batchSize, emit); err != nil {
		return wrapStore("export edges", err)
	}
	if err := g.exportDerivedEdges(ctx, sess, batchSize, emit); err != nil {
		return wrapStore("export derived edges", err)
	}
	return nil
}

// ExportAll buffers a complete export. Only for graphs known to be small.
func (g *GraphStore) ExportAll(ctx context.Context) (GraphExport, error) {
	out := GraphExport{
		Nodes:         []domain.GraphNode{},
		Relationships: []domain.GraphRelationship{},
	}
	err := g.ExportGraph(ctx, DefaultExportBatchSize, func(b ExportBatch) error {
		out.Nodes = append(out.Nodes, b.Nodes...)
		out.Relationships = append(out.Relationships, b.Relationships...)
		return nil
	})
	return out, err
}

func (g *GraphStore) exportNodes(ctx context.Context, sess CypherSession, batchSize int, emit func(ExportBatch) error) error {
	maxID, err := maxCounter(ctx, sess, `MATCH (n) RETURN max(id(n)) AS m`)
	if err != nil {
		return err
	}

	for cur := int64(0); cur <= maxID; cur += int64(batchSize) {
		res, err := sess.Run(ctx, `
			MATCH (n)
			WHERE id(n) >= $start AND id(n) < $end
			RETURN id(n) AS id, labels(n)[0] AS type, properties(n) AS props`,
			map[string]any{"start": cur, "end": cur + int64(batchSize)})
		if err != nil {
			return err
		}
		var nodes []domain.GraphNode
		for res.Next(ctx) {
			rec := res.Record()
			props, _ := rec.Get("props")
			nodes = append(nodes, domain.GraphNode{
				ID:         recInt(rec, "id"),
				Type:       recString(rec, "type"),
				Properties: normalizeProps(props),
			})
		}
		if err := res.Err(); err != nil {
			return err
		}
		if len(nodes) > 0 {
			if err := emit(ExportBatch{Nodes: nodes}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *GraphStore) exportEdges(ctx context.Context, sess CypherSession, batchSize int, emit func(ExportBatch) error) error {
	maxID, err := maxCounter(ctx, sess, `MATCH ()-[r]->() RETURN max(id(r)) AS m`)
	if err != nil {
		return err
	}

	for cur := int64(0); cur <= maxID; cur += int64(batchSize) {
		res, err := sess.Run(ctx, `
			MATCH (a)-[r]->(b)
			WHERE id(r) >= $start AND id(r) < $end
			RETURN id(a) AS src, labels(a)[0] AS srcType,
			       type(r) AS rel, id(b) AS tgt, labels(b)[0] AS tgtType`,
			map[string]any{"start": cur, "end": cur + int64(batchSize)})
		if err != nil {
			return err
		}
		rels, err := collectRelationships(ctx, res)
		if err != nil {
			return err
		}
		if len(rels) > 0 {
			if err := emit(ExportBatch{Relationships: rels}); err != nil {
				return err
			}
		}
	}
	return nil
}

// exportDerivedEdges scans transaction pairs sharing an ip or device and
// emits them as similarity edges. These are computed, not stored: SHARED_IP
// wins when both attributes match.
func (g *GraphStore) exportDerivedEdges(ctx context.Context, sess CypherSession, batchSize int, emit func(ExportBatch) error) error {
	maxID, err := maxCounter(ctx, sess, `MATCH (t:Transaction) RETURN max(id(t)) AS m`)
	if err != nil {
		return err
	}

	for cur := int64(0); cur <= maxID; cur += int64(batchSize) {
		res, err := sess.Run(ctx, `
			MATCH (t1:Transaction), (t2:Transaction)
			WHERE id(t1) >= $start AND id(t1) < $end
			  AND id(t1) < id(t2)
			  AND (
			    (t1.ip IS NOT NULL AND t1.ip = t2.ip)
			    OR
			    (t1.deviceId IS NOT NULL AND t1.deviceId = t2.deviceId)
			  )
			RETURN id(t1) AS src, labels(t1)[0] AS srcType,
			       CASE WHEN t1.ip = t2.ip THEN 'SHARED_IP' ELSE 'SHARED_DEVICE' END AS rel,
			       id(t2) AS tgt, labels(t2)[0] AS tgtType`,
			map[string]any{"start": cur, "end": cur + int64(batchSize)})
		if err != nil {
			return err
		}
		rels, err := collectRelationships(ctx, res)
		if err != nil {
			return err
		}
		if len(rels) > 0 {
			if err := emit(ExportBatch{Relationships: rels}); err != nil {
				return err
			}
		}
	}
	return nil
}

func collectRelationships(ctx context.Context, res CypherResult) ([]domain.GraphRelationship, error) {
	var rels []domain.GraphRelationship
	for res.Next(ctx) {
		rec := res.Record()
		rels = append(rels, domain.GraphRelationship{
			SourceID:     recInt(rec, "src"),
			SourceType:   recString(rec, "srcType"),
			Relationship: recString(rec, "rel"),
			TargetID:     recInt(rec, "tgt"),
			TargetType:   recString(rec, "tgtType"),
		})
	}
	return rels, res.Err()
}

// maxCounter runs a max(id(...)) query; an absent or null maximum yields -1,
// which makes the caller's cursor loop a no-op.
func maxCounter(ctx context.Context, sess CypherSession, cypher string) (int64, error) {
	res, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return -1, err
	}
	if !res.Next(ctx) {
		return -1, res.Err()
	}
	v, ok := res.Record().Get("m")
	if !ok || v == nil {
		return -1, nil
	}
	n, ok := v.(int64)
	if !ok {
		return -1, nil
	}
	return n, nil
}

// normalizeProps converts driver-native property values into JSON-friendly
// ones. Temporal values become ISO-8601 strings.
func normalizeProps(v any) map[string]any {
	props, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(props))
	for k, val := range props {
		switch t := val.(type) {
		case time.Time:
			out[k] = t.Format(time.RFC3339Nano)
		default:
			out[k] = val
		}
	}
	return out
}
