package graph

import (
	"context"

	"github.com/FinGraphAI/fingraph-mvp/engine/domain"
)

// ShortestPath computes one shortest path between two users over the
// undirected view of the whole graph (every edge type traversable both ways)
// and reconstructs it as ordered typed segments.
//
// When several equal-length paths exist the choice is delegated to the
// store's shortestPath() traversal; only contiguity and minimal length are
// guaranteed, not which of the ties is returned.
//
// Returns domain.ErrNoPath when the endpoints are disconnected or either id
// does not exist, distinct from store errors.
func (g *GraphStore) ShortestPath(ctx context.Context, fromID, toID int64) ([]domain.PathSegment, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `
		MATCH (a:User), (b:User), p = shortestPath((a)-[*]-(b))
		WHERE id(a) = $from AND id(b) = $to
		UNWIND relationships(p) AS r
		WITH r, startNode(r) AS fn, endNode(r) AS tn
		RETURN
		  labels(fn)[0]                                         AS fromLabel,
		  id(fn)                                                AS fromId,
		  CASE WHEN fn:User THEN fn.name ELSE '' END            AS fromName,
		  CASE WHEN fn:Transaction THEN fn.deviceId ELSE '' END AS fromDeviceId,
		  labels(tn)[0]                                         AS toLabel,
		  id(tn)                                                AS toId,
		  CASE WHEN tn:User THEN tn.name ELSE '' END            AS toName,
		  CASE WHEN tn:Transaction THEN tn.deviceId ELSE '' END AS toDeviceId,
		  type(r)                                               AS relationship`
	res, err := sess.Run(ctx, cypher, map[string]any{"from": fromID, "to": toID})
	if err != nil {
		return nil, wrapStore("shortest path", err)
	}

	var segments []domain.PathSegment
	for res.Next(ctx) {
		rec := res.Record()
		segments = append(segments, domain.PathSegment{
			FromNode: domain.PathNode{
				ID:       recInt(rec, "fromId"),
				Type:     recString(rec, "fromLabel"),
				Name:     recString(rec, "fromName"),
				DeviceID: recString(rec, "fromDeviceId"),
			},
			ToNode: domain.PathNode{
				ID:       recInt(rec, "toId"),
				Type:     recString(rec, "toLabel"),
				Name:     recString(rec, "toName"),
				DeviceID: recString(rec, "toDeviceId"),
			},
			Relationship: recString(rec, "relationship"),
		})
	}
	if err := res.Err(); err != nil {
		return nil, wrapStore("shortest path", err)
	}
	if len(segments) == 0 {
		return nil, domain.ErrNoPath
	}

	// UNWIND preserves path order, but the store gives no orientation
	// guarantee per relationship; orient each segment so the chain starts
	// at fromID and consecutive segments share an endpoint.
	return orientSegments(segments, fromID), nil
}

// orientSegments flips individual segments so the sequence reads from the
// source user to the target. Each relationship in a path may be stored in
// either direction; the traversal order of the segments themselves is kept.
func orientSegments(segs []domain.PathSegment, fromID int64) []domain.PathSegment {
	cursor := fromID
	for i := range segs {
		if segs[i].FromNode.ID != cursor && segs[i].ToNode.ID == cursor {
			segs[i].FromNode, segs[i].ToNode = segs[i].ToNode, segs[i].FromNode
		}
		cursor = segs[i].ToNode.ID
	}
	return segs
}
