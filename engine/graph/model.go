package graph

import (
	"context"

	"github.com/FinGraphAI/fingraph-mvp/engine/domain"
	"github.com/FinGraphAI/fingraph-mvp/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// userRepo is the generic native-id reader for User nodes.
type userRepo = repo.Neo4jRepo[domain.User]

func newUserRepo(opener SessionOpener) *userRepo {
	return repo.NewNeo4jRepo(
		func(ctx context.Context) repo.Runner { return repoSession{s: opener.OpenSession(ctx)} },
		domain.LabelUser,
		userFromNodeRecord,
	)
}

// repoSession adapts a CypherSession to the repo package's Runner.
type repoSession struct {
	s CypherSession
}

func (r repoSession) Run(ctx context.Context, cypher string, params map[string]any) (repo.Result, error) {
	res, err := r.s.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r repoSession) Close(ctx context.Context) error { return r.s.Close(ctx) }

// userFromNodeRecord projects a record with columns `id` and `n` into a User.
func userFromNodeRecord(rec *neo4j.Record) (domain.User, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:    recInt(rec, "id"),
		Name:  strProp(node.Props, "name"),
		Email: strProp(node.Props, "email"),
		Phone: strProp(node.Props, "phone"),
	}, nil
}

// userFromColumns projects a record with flat aliased columns into a User.
func userFromColumns(rec *neo4j.Record, idKey, nameKey, emailKey, phoneKey string) domain.User {
	return domain.User{
		ID:    recInt(rec, idKey),
		Name:  recString(rec, nameKey),
		Email: recString(rec, emailKey),
		Phone: recString(rec, phoneKey),
	}
}

// txColumns is the canonical aliased projection of a transaction row.
const txColumns = `id(t) AS id, id(u1) AS fromId, id(u2) AS toId,
	       t.amount AS amt, t.currency AS currency, toString(t.timestamp) AS ts,
	       t.description AS desc, t.deviceId AS deviceId`

// txFromColumns projects a row produced by txColumns into a Transaction.
func txFromColumns(rec *neo4j.Record) domain.Transaction {
	return domain.Transaction{
		ID:          recInt(rec, "id"),
		FromUserID:  recInt(rec, "fromId"),
		ToUserID:    recInt(rec, "toId"),
		Amount:      recFloat(rec, "amt"),
		Currency:    recString(rec, "currency"),
		Timestamp:   recString(rec, "ts"),
		Description: recString(rec, "desc"),
		DeviceID:    recString(rec, "deviceId"),
	}
}

// --- record/property accessors ---

func recInt(rec *neo4j.Record, key string) int64 {
	v, ok := rec.Get(key)
	if !ok {
		return 0
	}
	n, _ := v.(int64)
	return n
}

func recString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func recFloat(rec *neo4j.Record, key string) float64 {
	v, ok := rec.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
