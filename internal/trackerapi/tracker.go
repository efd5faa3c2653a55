package trackerapi

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/attract-vse/attract/internal/attractapi"
	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrPreconditionFailed  = errors.New("etag does not match")
	ErrMissingPrecondition = errors.New("missing If-Match header")
	ErrUnknownNodeType     = errors.New("unknown node type")
	ErrInvalidInput        = errors.New("invalid input")
)

const timestampLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// Tracker is the in-memory node graph served by Server.
type Tracker struct {
	mu        sync.RWMutex
	nodeTypes []attractapi.NodeType
	tokens    []attractapi.Token
	nodes     map[string]attractapi.Node
	// nodeOrder keeps listings in creation order.
	nodeOrder []string
	now       func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		nodes: map[string]attractapi.Node{},
		now:   time.Now,
	}
}

func (t *Tracker) AddNodeType(nt attractapi.NodeType) attractapi.NodeType {
	t.mu.Lock()
	defer t.mu.Unlock()
	if strings.TrimSpace(nt.ID) == "" {
		nt.ID = newID()
	}
	nt.ETag = etagFor(nt)
	t.nodeTypes = append(t.nodeTypes, nt)
	return nt
}

func (t *Tracker) AddToken(tok attractapi.Token) attractapi.Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	if strings.TrimSpace(tok.ID) == "" {
		tok.ID = newID()
	}
	t.tokens = append(t.tokens, tok)
	return tok
}

// Authorize returns the token record for value if it exists and has not expired.
func (t *Tracker) Authorize(value string) (attractapi.Token, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return attractapi.Token{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	now := t.now().UTC()
	for _, tok := range t.tokens {
		if tok.Token != value {
			continue
		}
		if expires, ok := parseTimestamp(tok.Expires); ok && !now.Before(expires) {
			return attractapi.Token{}, false
		}
		return tok, true
	}
	return attractapi.Token{}, false
}

func (t *Tracker) ListNodeTypes(where map[string]any, page, maxResults int) attractapi.NodeTypePage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return paginate(filterItems(t.nodeTypes, where), page, maxResults)
}

func (t *Tracker) ListTokens(where map[string]any, page, maxResults int) attractapi.TokenPage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return paginate(filterItems(t.tokens, where), page, maxResults)
}

func (t *Tracker) ListNodes(where map[string]any, page, maxResults int) attractapi.NodePage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	nodes := make([]attractapi.Node, 0, len(t.nodeOrder))
	for _, id := range t.nodeOrder {
		nodes = append(nodes, t.nodes[id])
	}
	return paginate(filterItems(nodes, where), page, maxResults)
}

func (t *Tracker) GetNode(id string) (attractapi.Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node, ok := t.nodes[strings.TrimSpace(id)]
	if !ok {
		return attractapi.Node{}, ErrNotFound
	}
	return node, nil
}

func (t *Tracker) CreateNode(doc attractapi.NodeDocument) (attractapi.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasNodeTypeLocked(doc.NodeType) {
		return attractapi.Node{}, ErrUnknownNodeType
	}
	stamp := t.now().UTC().Format(timestampLayout)
	node := nodeFromDocument(doc)
	node.ID = newID()
	node.Created = stamp
	node.Updated = stamp
	node.ETag = etagFor(doc)
	t.nodes[node.ID] = node
	t.nodeOrder = append(t.nodeOrder, node.ID)
	return node, nil
}

// ReplaceNode overwrites every writable field of node id when ifMatch
// equals its current etag.
func (t *Tracker) ReplaceNode(id, ifMatch string, doc attractapi.NodeDocument) (attractapi.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	current, ok := t.nodes[strings.TrimSpace(id)]
	if !ok {
		return attractapi.Node{}, ErrNotFound
	}
	if ifMatch == "" {
		return attractapi.Node{}, ErrMissingPrecondition
	}
	if ifMatch != current.ETag {
		return attractapi.Node{}, ErrPreconditionFailed
	}
	if !t.hasNodeTypeLocked(doc.NodeType) {
		return attractapi.Node{}, ErrUnknownNodeType
	}
	node := nodeFromDocument(doc)
	node.ID = current.ID
	node.Created = current.Created
	node.Updated = t.now().UTC().Format(timestampLayout)
	// Chained so every accepted write yields a fresh etag.
	node.ETag = etagFor(struct {
		Doc      attractapi.NodeDocument
		Previous string
	}{doc, current.ETag})
	t.nodes[node.ID] = node
	return node, nil
}

func (t *Tracker) DeleteNode(id, ifMatch string) (attractapi.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	current, ok := t.nodes[strings.TrimSpace(id)]
	if !ok {
		return attractapi.Node{}, ErrNotFound
	}
	if ifMatch == "" {
		return attractapi.Node{}, ErrMissingPrecondition
	}
	if ifMatch != current.ETag {
		return attractapi.Node{}, ErrPreconditionFailed
	}
	delete(t.nodes, current.ID)
	for i, existing := range t.nodeOrder {
		if existing == current.ID {
			t.nodeOrder = append(t.nodeOrder[:i], t.nodeOrder[i+1:]...)
			break
		}
	}
	return current, nil
}

func (t *Tracker) hasNodeTypeLocked(id string) bool {
	for _, nt := range t.nodeTypes {
		if nt.ID == id {
			return true
		}
	}
	return false
}

func nodeFromDocument(doc attractapi.NodeDocument) attractapi.Node {
	return attractapi.Node{
		NodeType:    doc.NodeType,
		Name:        doc.Name,
		Description: doc.Description,
		Order:       doc.Order,
		User:        doc.User,
		Properties:  doc.Properties,
	}
}

// filterItems keeps items whose JSON form equals every where entry. Keys may
// use dots to reach nested fields, e.g. "properties.status".
func filterItems[T any](items []T, where map[string]any) []T {
	if len(where) == 0 {
		return append([]T(nil), items...)
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		doc, err := asDocument(item)
		if err != nil {
			continue
		}
		if matchesWhere(doc, where) {
			out = append(out, item)
		}
	}
	return out
}

func matchesWhere(doc map[string]any, where map[string]any) bool {
	keys := make([]string, 0, len(where))
	for key := range where {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value, ok := lookupPath(doc, key)
		if !ok || !reflect.DeepEqual(normalizeJSON(value), normalizeJSON(where[key])) {
			return false
		}
	}
	return true
}

func lookupPath(doc map[string]any, path string) (any, bool) {
	var current any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// normalizeJSON round-trips v so numbers compare as float64.
func normalizeJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func asDocument(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func paginate[T any](items []T, page, maxResults int) attractapi.Page[T] {
	if page <= 0 {
		page = 1
	}
	if maxResults <= 0 {
		maxResults = defaultPageSize
	}
	total := len(items)
	start := (page - 1) * maxResults
	if start > total {
		start = total
	}
	end := start + maxResults
	if end > total {
		end = total
	}
	out := attractapi.Page[T]{
		Items: append([]T{}, items[start:end]...),
		Meta:  attractapi.Meta{Page: page, MaxResults: maxResults, Total: total},
	}
	return out
}

func etagFor(v any) string {
	data, _ := json.Marshal(v)
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{timestampLayout, time.RFC1123, time.RFC3339} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
