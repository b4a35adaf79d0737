package graph

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/FinGraphAI/fingraph-mvp/engine/domain"
	"github.com/FinGraphAI/fingraph-mvp/pkg/repo"
)

// CreateUser persists a new user node and immediately links it to existing
// users sharing its email or phone. The node id is assigned by the store.
//
// Linking is best-effort: the create commits on its own, and a failure in a
// later link pass surfaces as an error without rolling back the node or any
// similarity edges already merged.
func (g *GraphStore) CreateUser(ctx context.Context, in domain.NewUserInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}

	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	idVal, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		cypher := `CREATE (u:User { name: $name, email: $email, phone: $phone })
		           RETURN id(u) AS id`
		res, err := tx.Run(ctx, cypher, map[string]any{
			"name": in.Name, "email": in.Email, "phone": in.Phone,
		})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, domain.NewStoreError("create user", errNoRecord)
		}
		return recInt(res.Record(), "id"), nil
	})
	if err != nil {
		return 0, wrapStore("create user", err)
	}
	id := idVal.(int64)

	if err := linkUserEdges(ctx, sess, id); err != nil {
		return 0, wrapStore("link user", err)
	}
	return id, nil
}

// CreateTransaction persists a new transaction node with its SENT and
// RECEIVED_BY edges, then links it to transactions sharing its device.
func (g *GraphStore) CreateTransaction(ctx context.Context, in domain.NewTransactionInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}

	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	idVal, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		cypher := `MATCH (u1:User), (u2:User)
		           WHERE id(u1) = $fromId AND id(u2) = $toId
		           CREATE (t:Transaction {
		             amount:      $amt,
		             currency:    $currency,
		             timestamp:   datetime($ts),
		             description: $desc,
		             deviceId:    $deviceId
		           })
		           CREATE (u1)-[:SENT]->(t)
		           CREATE (t)-[:RECEIVED_BY]->(u2)
		           RETURN id(t) AS id`
		res, err := tx.Run(ctx, cypher, map[string]any{
			"fromId": *in.FromUserID, "toId": *in.ToUserID, "amt": in.Amount,
			"currency": in.Currency, "ts": in.Timestamp,
			"desc": in.Description, "deviceId": in.DeviceID,
		})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, domain.NewStoreError("create transaction", errNoRecord)
		}
		return recInt(res.Record(), "id"), nil
	})
	if err != nil {
		return 0, wrapStore("create transaction", err)
	}
	id := idVal.(int64)

	if err := linkTransactionEdges(ctx, sess, id); err != nil {
		return 0, wrapStore("link transaction", err)
	}
	return id, nil
}

// GetUser returns the user with the given id.
func (g *GraphStore) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := g.users.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, wrapStore("get user", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by id.
func (g *GraphStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := g.users.List(ctx, repo.ListOpts{})
	if err != nil {
		return nil, wrapStore("list users", err)
	}
	return users, nil
}

// ListUsersPage returns one page of users, optionally filtered by a
// case-insensitive search over name, email, and phone.
func (g *GraphStore) ListUsersPage(ctx context.Context, page, pageSize int, search string) (domain.Page[domain.User], error) {
	var out domain.Page[domain.User]
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	where := ""
	params := map[string]any{
		"skip":  (page - 1) * pageSize,
		"limit": pageSize,
	}
	if search != "" {
		where = `WHERE toLower(u.name) CONTAINS toLower($q)
		         OR toLower(u.email) CONTAINS toLower($q)
		         OR u.phone CONTAINS $q`
		params["q"] = search
	}

	countRes, err := sess.Run(ctx, `MATCH (u:User) `+where+` RETURN count(u) AS total`, params)
	if err != nil {
		return out, wrapStore("count users", err)
	}
	var total int64
	if countRes.Next(ctx) {
		total = recInt(countRes.Record(), "total")
	}

	cypher := `MATCH (u:User) ` + where + `
	           RETURN id(u) AS id, u.name AS name, u.email AS email, u.phone AS phone
	           ORDER BY id ASC SKIP $skip LIMIT $limit`
	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return out, wrapStore("list users", err)
	}
	users := []domain.User{}
	for res.Next(ctx) {
		users = append(users, userFromColumns(res.Record(), "id", "name", "email", "phone"))
	}
	if err := res.Err(); err != nil {
		return out, wrapStore("list users", err)
	}

	return domain.Page[domain.User]{
		Data: users, Total: total, Page: page, PageSize: pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// GetTransaction returns the transaction with the given id, including its
// sender and receiver ids.
func (g *GraphStore) GetTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (u1:User)-[:SENT]->(t:Transaction)-[:RECEIVED_BY]->(u2:User)
	           WHERE id(t) = $id
	           RETURN ` + txColumns
	res, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return domain.Transaction{}, wrapStore("get transaction", err)
	}
	if !res.Next(ctx) {
		if err := res.Err(); err != nil {
			return domain.Transaction{}, wrapStore("get transaction", err)
		}
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	return txFromColumns(res.Record()), nil
}

// ListTransactions returns all transactions ordered by id.
func (g *GraphStore) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (u1:User)-[:SENT]->(t:Transaction)-[:RECEIVED_BY]->(u2:User)
	           RETURN ` + txColumns + `
	           ORDER BY id ASC`
	res, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, wrapStore("list transactions", err)
	}
	var txs []domain.Transaction
	for res.Next(ctx) {
		txs = append(txs, txFromColumns(res.Record()))
	}
	if err := res.Err(); err != nil {
		return nil, wrapStore("list transactions", err)
	}
	return txs, nil
}

// ListTransactionsPage returns one page of transactions matching the filter.
func (g *GraphStore) ListTransactionsPage(ctx context.Context, page, pageSize int, f domain.TxFilter) (domain.Page[domain.Transaction], error) {
	var out domain.Page[domain.Transaction]
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	conds := []string{}
	params := map[string]any{
		"skip":  (page - 1) * pageSize,
		"limit": pageSize,
	}
	if f.MinAmount != nil {
		conds = append(conds, "t.amount >= $minAmount")
		params["minAmount"] = *f.MinAmount
	}
	if f.MaxAmount != nil {
		conds = append(conds, "t.amount <= $maxAmount")
		params["maxAmount"] = *f.MaxAmount
	}
	if f.Currency != "" {
		conds = append(conds, "t.currency = $currency")
		params["currency"] = f.Currency
	}
	if f.StartDate != "" {
		conds = append(conds, "t.timestamp >= datetime($startDate)")
		params["startDate"] = f.StartDate
	}
	if f.EndDate != "" {
		conds = append(conds, "t.timestamp <= datetime($endDate)")
		params["endDate"] = f.EndDate
	}
	if f.Description != "" {
		conds = append(conds, "toLower(t.description) CONTAINS toLower($descQ)")
		params["descQ"] = f.Description
	}
	if f.DeviceID != "" {
		conds = append(conds, "t.deviceId CONTAINS $deviceQ")
		params["deviceQ"] = f.DeviceID
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	match := `MATCH (u1:User)-[:SENT]->(t:Transaction)-[:RECEIVED_BY]->(u2:User) ` + where

	countRes, err := sess.Run(ctx, match+` RETURN count(t) AS total`, params)
	if err != nil {
		return out, wrapStore("count transactions", err)
	}
	var total int64
	if countRes.Next(ctx) {
		total = recInt(countRes.Record(), "total")
	}

	res, err := sess.Run(ctx, match+` RETURN `+txColumns+` ORDER BY id ASC SKIP $skip LIMIT $limit`, params)
	if err != nil {
		return out, wrapStore("list transactions", err)
	}
	txs := []domain.Transaction{}
	for res.Next(ctx) {
		txs = append(txs, txFromColumns(res.Record()))
	}
	if err := res.Err(); err != nil {
		return out, wrapStore("list transactions", err)
	}

	return domain.Page[domain.Transaction]{
		Data: txs, Total: total, Page: page, PageSize: pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// ListCurrencies returns the distinct currency codes in use, sorted.
func (g *GraphStore) ListCurrencies(ctx context.Context) ([]string, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `MATCH (t:Transaction) RETURN DISTINCT t.currency AS currency`, nil)
	if err != nil {
		return nil, wrapStore("list currencies", err)
	}
	var currencies []string
	for res.Next(ctx) {
		if c := recString(res.Record(), "currency"); c != "" {
			currencies = append(currencies, c)
		}
	}
	if err := res.Err(); err != nil {
		return nil, wrapStore("list currencies", err)
	}
	sort.Strings(currencies)
	return currencies, nil
}

func totalPages(total int64, pageSize int) int64 {
	if pageSize <= 0 {
		return 0
	}
	return (total + int64(pageSize) - 1) / int64(pageSize)
}
