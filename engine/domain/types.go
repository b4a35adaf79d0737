// Package domain defines the typed records shared by the graph engine and
// its HTTP boundary: entities, connection wrappers, path segments, cluster
// entries, and export rows.
package domain

// User is a person node. Email and phone are identity attributes: equality
// with another user's value implies a similarity edge.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Transaction is a monetary transfer node between two users. DeviceID is its
// identity attribute; IP may additionally be present on seeded/imported data
// and only participates in export-time similarity.
type Transaction struct {
	ID          int64   `json:"id"`
	FromUserID  int64   `json:"fromUserId"`
	ToUserID    int64   `json:"toUserId"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Timestamp   string  `json:"timestamp"`
	Description string  `json:"description"`
	DeviceID    string  `json:"deviceId"`
}

// ConnNode is a node that can appear inside a Connection: either a User or a
// Transaction. The concrete type decides the JSON shape.
type ConnNode interface {
	connNode()
}

func (User) connNode()        {}
func (Transaction) connNode() {}

// Connection pairs a neighboring node with the relationship that reaches it.
type Connection struct {
	Node         ConnNode `json:"node"`
	Relationship string   `json:"relationship"`
}

// PathNode is a typed endpoint descriptor inside a path segment. Name is set
// only for User nodes, DeviceID only for Transaction nodes.
type PathNode struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
}

// PathSegment is one edge traversal of a reconstructed path. Consecutive
// segments share an endpoint: segment[i].ToNode == segment[i+1].FromNode.
type PathSegment struct {
	FromNode     PathNode `json:"fromNode"`
	ToNode       PathNode `json:"toNode"`
	Relationship string   `json:"relationship"`
}

// ClusterEntry assigns a transaction to its connected component. ClusterID is
// the minimum transaction id within the component.
type ClusterEntry struct {
	TransactionID int64 `json:"transactionId"`
	ClusterID     int64 `json:"clusterId"`
}

// GraphNode is an export row for a single node: primary label plus the full
// property map.
type GraphNode struct {
	ID         int64          `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// GraphRelationship is an export row for a single edge.
type GraphRelationship struct {
	SourceID     int64  `json:"sourceId"`
	SourceType   string `json:"sourceType"`
	Relationship string `json:"relationship"`
	TargetID     int64  `json:"targetId"`
	TargetType   string `json:"targetType"`
}

// Statistics holds whole-graph counts.
type Statistics struct {
	UserCount         int64 `json:"userCount"`
	TransactionCount  int64 `json:"transactionCount"`
	RelationshipCount int64 `json:"relationshipCount"`
}

// Page is a paginated list envelope.
type Page[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int64 `json:"totalPages"`
}

// TxFilter narrows paginated transaction listings. Zero values mean "no
// constraint"; MinAmount/MaxAmount use pointers so 0 is a valid bound.
type TxFilter struct {
	MinAmount   *float64
	MaxAmount   *float64
	Currency    string
	StartDate   string
	EndDate     string
	Description string
	DeviceID    string
}

// Relationship type names as stored in the graph.
const (
	RelSent         = "SENT"
	RelReceivedBy   = "RECEIVED_BY"
	RelSharedEmail  = "SHARED_EMAIL"
	RelSharedPhone  = "SHARED_PHONE"
	RelSharedDevice = "SHARED_DEVICE"
	RelSharedIP     = "SHARED_IP"
)

// Node labels as stored in the graph.
const (
	LabelUser        = "User"
	LabelTransaction = "Transaction"
)
