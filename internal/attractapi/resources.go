package attractapi

import (
	"encoding/json"
	"strings"
)

const (
	ResourceNodeTypes = "node_types"
	ResourceNodes     = "nodes"
	ResourceTokens    = "tokens"
)

const (
	StatusOnHold     = "on_hold"
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
)

type NodeType struct {
	ID          string `json:"_id,omitempty"`
	ETag        string `json:"_etag,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Token struct {
	ID      string `json:"_id,omitempty"`
	Token   string `json:"token"`
	User    string `json:"user"`
	Expires string `json:"expire_time,omitempty"`
}

type NodeProperties struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
	CutIn  int    `json:"cut_in"`
	CutOut int    `json:"cut_out"`
}

// Node is a shot record in the remote graph.
type Node struct {
	ID          string         `json:"_id,omitempty"`
	ETag        string         `json:"_etag,omitempty"`
	Created     string         `json:"_created,omitempty"`
	Updated     string         `json:"_updated,omitempty"`
	NodeType    string         `json:"node_type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Order       int            `json:"order"`
	User        string         `json:"user,omitempty"`
	Properties  NodeProperties `json:"properties"`
}

// NodeDocument is the writable part of a node, as sent on POST and PUT.
type NodeDocument struct {
	NodeType    string         `json:"node_type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Order       int            `json:"order"`
	User        string         `json:"user,omitempty"`
	Properties  NodeProperties `json:"properties"`
}

func (n Node) Document() NodeDocument {
	return NodeDocument{
		NodeType:    n.NodeType,
		Name:        n.Name,
		Description: n.Description,
		Order:       n.Order,
		User:        n.User,
		Properties:  n.Properties,
	}
}

type Meta struct {
	Page       int `json:"page"`
	MaxResults int `json:"max_results"`
	Total      int `json:"total"`
}

type Link struct {
	Href  string `json:"href"`
	Title string `json:"title,omitempty"`
}

type Links struct {
	Next *Link `json:"next,omitempty"`
}

// Page is one page of a filtered resource listing.
type Page[T any] struct {
	Items []T   `json:"_items"`
	Meta  Meta  `json:"_meta"`
	Links Links `json:"_links"`
}

type (
	NodePage     = Page[Node]
	NodeTypePage = Page[NodeType]
	TokenPage    = Page[Token]
)

// HasNext reports whether another page follows, preferring the next link
// and falling back to the totals in the meta block.
func (p Page[T]) HasNext() bool {
	if p.Links.Next != nil && strings.TrimSpace(p.Links.Next.Href) != "" {
		return true
	}
	if p.Meta.MaxResults <= 0 || p.Meta.Page <= 0 {
		return false
	}
	return p.Meta.Page*p.Meta.MaxResults < p.Meta.Total
}

// Truncated reports whether the listing holds fewer items than the server counted.
func (p Page[T]) Truncated() bool {
	return p.Meta.Total > len(p.Items)
}

type writeResponse struct {
	ID      string `json:"_id"`
	ETag    string `json:"_etag"`
	Created string `json:"_created"`
	Updated string `json:"_updated"`
	Status  string `json:"_status"`
}

type errorResponse struct {
	Status string            `json:"_status"`
	Issues map[string]string `json:"_issues"`
	Error  struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"_error"`
}

// NodeEvent is a change notification pushed over the events socket.
type NodeEvent struct {
	Type      string `json:"type"`
	NodeID    string `json:"node_id"`
	NodeType  string `json:"node_type,omitempty"`
	ETag      string `json:"etag,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

const (
	EventNodeCreated = "node.created"
	EventNodeUpdated = "node.updated"
	EventNodeDeleted = "node.deleted"
)

// Query is an equality filter plus paging for list calls.
type Query struct {
	Where      map[string]any
	MaxResults int
	Page       int
}

func (q Query) whereJSON() (string, error) {
	if len(q.Where) == 0 {
		return "", nil
	}
	data, err := json.Marshal(q.Where)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
