package shotsync

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/attract-vse/attract/internal/attractapi"
)

const (
	testShotTypeID = "nt_shot"
	testToken      = "tok_editor"
	testUser       = "user_editor"
)

type fakeClient struct {
	mu sync.Mutex

	token     string
	nodeTypes []attractapi.NodeType
	tokens    []attractapi.Token
	nodes     map[string]attractapi.Node
	nextID    int

	getErr    map[string]error
	updateErr map[string]error
	createErr error
	deleteErr error

	calls   map[string]int
	updates []attractapi.Node

	// beforeUpdate runs outside the client lock at the start of UpdateNode.
	beforeUpdate func(attractapi.Node)
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		token: testToken,
		nodeTypes: []attractapi.NodeType{
			{ID: "nt_task", Name: "task"},
			{ID: testShotTypeID, Name: "shot"},
		},
		tokens: []attractapi.Token{
			{ID: "t1", Token: testToken, User: testUser},
		},
		nodes:     map[string]attractapi.Node{},
		getErr:    map[string]error{},
		updateErr: map[string]error{},
		calls:     map[string]int{},
	}
}

func (c *fakeClient) seedShot(id string, order int) attractapi.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	node := attractapi.Node{
		ID:       id,
		ETag:     "etag_" + id + "_1",
		NodeType: testShotTypeID,
		Name:     "shot " + id,
		Order:    order,
		User:     testUser,
		Properties: attractapi.NodeProperties{
			Status: attractapi.StatusTodo,
			Notes:  "notes " + id,
			CutIn:  1,
			CutOut: 25,
		},
	}
	c.nodes[id] = node
	return node
}

func (c *fakeClient) removeNode(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nodes, id)
}

func (c *fakeClient) node(id string) (attractapi.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.nodes[id]
	return node, ok
}

func (c *fakeClient) callCount(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *fakeClient) totalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.calls {
		total += n
	}
	return total
}

func (c *fakeClient) SessionToken() string {
	return c.token
}

func (c *fakeClient) ListNodeTypes(ctx context.Context, q attractapi.Query) (attractapi.NodeTypePage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["list_node_types"]++
	items := []attractapi.NodeType{}
	for _, nt := range c.nodeTypes {
		if name, ok := q.Where["name"]; ok && name != nt.Name {
			continue
		}
		items = append(items, nt)
	}
	return attractapi.NodeTypePage{Items: items, Meta: attractapi.Meta{Page: 1, MaxResults: 25, Total: len(items)}}, nil
}

func (c *fakeClient) ListTokens(ctx context.Context, q attractapi.Query) (attractapi.TokenPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["list_tokens"]++
	items := []attractapi.Token{}
	for _, tok := range c.tokens {
		if value, ok := q.Where["token"]; ok && value != tok.Token {
			continue
		}
		items = append(items, tok)
	}
	return attractapi.TokenPage{Items: items, Meta: attractapi.Meta{Page: 1, MaxResults: 25, Total: len(items)}}, nil
}

func (c *fakeClient) ListNodes(ctx context.Context, q attractapi.Query) (attractapi.NodePage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["list_nodes"]++
	matched := []attractapi.Node{}
	for _, node := range c.nodes {
		if nodeType, ok := q.Where["node_type"]; ok && nodeType != node.NodeType {
			continue
		}
		matched = append(matched, node)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	pageSize := q.MaxResults
	if pageSize <= 0 {
		pageSize = 25
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	return attractapi.NodePage{
		Items: append([]attractapi.Node(nil), matched[start:end]...),
		Meta:  attractapi.Meta{Page: page, MaxResults: pageSize, Total: len(matched)},
	}, nil
}

func (c *fakeClient) GetNode(ctx context.Context, id string) (attractapi.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["get_node"]++
	if err := c.getErr[id]; err != nil {
		return attractapi.Node{}, err
	}
	node, ok := c.nodes[id]
	if !ok {
		return attractapi.Node{}, &attractapi.HTTPError{StatusCode: http.StatusNotFound}
	}
	return node, nil
}

func (c *fakeClient) CreateNode(ctx context.Context, node attractapi.Node) (attractapi.Node, error) {
	if err := attractapi.ValidateNode(node); err != nil {
		return attractapi.Node{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["create_node"]++
	if c.createErr != nil {
		return attractapi.Node{}, c.createErr
	}
	c.nextID++
	node.ID = fmt.Sprintf("node_%d", c.nextID)
	node.ETag = node.ID + "_etag_1"
	c.nodes[node.ID] = node
	return node, nil
}

func (c *fakeClient) UpdateNode(ctx context.Context, node attractapi.Node) (attractapi.Node, error) {
	if err := attractapi.ValidateNode(node); err != nil {
		return attractapi.Node{}, err
	}
	c.mu.Lock()
	hook := c.beforeUpdate
	c.mu.Unlock()
	if hook != nil {
		hook(node)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["update_node"]++
	if err := c.updateErr[node.ID]; err != nil {
		return attractapi.Node{}, err
	}
	current, ok := c.nodes[node.ID]
	if !ok {
		return attractapi.Node{}, &attractapi.HTTPError{StatusCode: http.StatusNotFound}
	}
	if node.ETag != current.ETag {
		return attractapi.Node{}, &attractapi.HTTPError{StatusCode: http.StatusPreconditionFailed}
	}
	node.ETag = bumpETag(current.ETag)
	c.nodes[node.ID] = node
	c.updates = append(c.updates, node)
	return node, nil
}

func (c *fakeClient) DeleteNode(ctx context.Context, node attractapi.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["delete_node"]++
	if c.deleteErr != nil {
		return c.deleteErr
	}
	current, ok := c.nodes[node.ID]
	if !ok {
		return &attractapi.HTTPError{StatusCode: http.StatusNotFound}
	}
	if node.ETag != current.ETag {
		return &attractapi.HTTPError{StatusCode: http.StatusPreconditionFailed}
	}
	delete(c.nodes, node.ID)
	return nil
}

func bumpETag(etag string) string {
	idx := strings.LastIndex(etag, "_")
	if idx < 0 {
		return etag + "_2"
	}
	var n int
	_, _ = fmt.Sscanf(etag[idx+1:], "%d", &n)
	return fmt.Sprintf("%s_%d", etag[:idx], n+1)
}
