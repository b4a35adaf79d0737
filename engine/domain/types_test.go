package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestConnectionJSON(t *testing.T) {
	conns := []Connection{
		{Node: User{ID: 1, Name: "Alice", Email: "a@x.com", Phone: "1"}, Relationship: RelSharedEmail},
		{Node: Transaction{ID: 10, FromUserID: 1, ToUserID: 2, Amount: 100, Currency: "USD"}, Relationship: RelSent},
	}
	b, err := json.Marshal(conns)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	// The node shape follows the concrete type.
	if !strings.Contains(s, `"email":"a@x.com"`) {
		t.Errorf("user node fields missing: %s", s)
	}
	if !strings.Contains(s, `"fromUserId":1`) || !strings.Contains(s, `"amount":100`) {
		t.Errorf("transaction node fields missing: %s", s)
	}
	if !strings.Contains(s, `"relationship":"SENT"`) {
		t.Errorf("relationship missing: %s", s)
	}
}

func TestPathNodeJSON_OmitsEmptyFields(t *testing.T) {
	user := PathNode{ID: 1, Type: LabelUser, Name: "Alice"}
	b, _ := json.Marshal(user)
	if strings.Contains(string(b), "deviceId") {
		t.Errorf("user path node should omit deviceId: %s", b)
	}

	tx := PathNode{ID: 10, Type: LabelTransaction, DeviceID: "dev-001"}
	b, _ = json.Marshal(tx)
	if strings.Contains(string(b), "name") {
		t.Errorf("transaction path node should omit name: %s", b)
	}
	if !strings.Contains(string(b), `"deviceId":"dev-001"`) {
		t.Errorf("deviceId missing: %s", b)
	}
}

func TestPageJSON(t *testing.T) {
	p := Page[User]{
		Data:       []User{},
		Total:      0,
		Page:       1,
		PageSize:   20,
		TotalPages: 0,
	}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// Empty pages serialize data as [], not null.
	if !strings.Contains(string(b), `"data":[]`) {
		t.Errorf("empty page should keep an array: %s", b)
	}
	if !strings.Contains(string(b), `"totalPages":0`) {
		t.Errorf("envelope fields missing: %s", b)
	}
}
