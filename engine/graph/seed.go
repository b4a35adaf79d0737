package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/FinGraphAI/fingraph-mvp/engine/domain"
)

// Seed populates the store with a small demo graph: five users with
// overlapping emails and phones, and seven transfers across four devices.
// Timestamps step back one hour per transaction so time filters have
// something to bite on.
func Seed(ctx context.Context, store *GraphStore) error {
	users := []domain.NewUserInput{
		{Name: "Alice", Email: "alice@example.com", Phone: "1111111111"},
		{Name: "Bob", Email: "bob@example.com", Phone: "2222222222"},
		{Name: "Carol", Email: "alice@example.com", Phone: "3333333333"},
		{Name: "Dave", Email: "dave@example.com", Phone: "1111111111"},
		{Name: "Eve", Email: "eve@example.com", Phone: "2222222222"},
	}

	ids := make([]int64, 0, len(users))
	for _, in := range users {
		id, err := store.CreateUser(ctx, in)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", in.Name, err)
		}
		ids = append(ids, id)
	}

	txs := []struct {
		from, to    int
		amount      float64
		description string
		deviceID    string
	}{
		{0, 1, 100.0, "Payment A→B", "dev-001"},
		{1, 2, 150.0, "Payment B→C", "dev-001"},
		{2, 0, 200.0, "Payment C→A", "dev-002"},
		{3, 4, 250.0, "Payment D→E", "dev-003"},
		{4, 3, 300.0, "Payment E→D", "dev-003"},
		{0, 3, 350.0, "Payment A→D", "dev-004"},
		{2, 4, 400.0, "Payment C→E", "dev-002"},
	}

	now := time.Now()
	for i, tx := range txs {
		ts := now.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339Nano)
		_, err := store.CreateTransaction(ctx, domain.NewTransactionInput{
			FromUserID:  &ids[tx.from],
			ToUserID:    &ids[tx.to],
			Amount:      tx.amount,
			Currency:    "USD",
			Timestamp:   ts,
			Description: tx.description,
			DeviceID:    tx.deviceID,
		})
		if err != nil {
			return fmt.Errorf("seed transaction %q: %w", tx.description, err)
		}
	}
	return nil
}
