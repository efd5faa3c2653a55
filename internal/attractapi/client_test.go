package attractapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(server *httptest.Server) *HTTPClient {
	return NewHTTPClientWithOptions(server.URL, "tok_test", server.Client(), HTTPClientOptions{
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
	})
}

func validShot() Node {
	return Node{
		NodeType: "nt_shot",
		Name:     "sh010",
		Order:    0,
		User:     "user_1",
		Properties: NodeProperties{
			Status: StatusOnHold,
			CutIn:  10,
			CutOut: 58,
		},
	}
}

func TestHTTPClientRetriesTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := atomic.AddInt32(&calls, 1)
		if call == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"_status":"ERR","_error":{"code":503,"message":"retry"}}`))
			return
		}
		if r.URL.Path != "/node_types" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_items":[{"_id":"nt_shot","name":"shot"}],"_meta":{"page":1,"max_results":25,"total":1}}`))
	}))
	defer server.Close()

	page, err := newTestClient(server).ListNodeTypes(context.Background(), Query{Where: map[string]any{"name": "shot"}})
	if err != nil {
		t.Fatalf("expected retry to recover from transient 503, got error: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "nt_shot" {
		t.Fatalf("unexpected node types page: %+v", page)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected exactly 2 calls (1 retry), got %d", atomic.LoadInt32(&calls))
	}
}

func TestHTTPClientGivesUpAsTransportError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClientWithOptions(server.URL, "tok_test", server.Client(), HTTPClientOptions{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
	})
	_, err := client.GetNode(context.Background(), "n1")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error after retries, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("502 must not be reported as not found")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestHTTPClientListEncodesFilterAndPaging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nodes" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var where map[string]any
		if err := json.Unmarshal([]byte(r.URL.Query().Get("where")), &where); err != nil {
			t.Errorf("where is not json: %v", err)
		}
		if where["node_type"] != "nt_shot" {
			t.Errorf("expected node_type filter, got %v", where)
		}
		if r.URL.Query().Get("max_results") != "100" {
			t.Errorf("expected max_results=100, got %q", r.URL.Query().Get("max_results"))
		}
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("expected page=2, got %q", r.URL.Query().Get("page"))
		}
		if r.Header.Get("Authorization") != "Bearer tok_test" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		if !strings.HasPrefix(r.Header.Get("X-Correlation-Id"), "attract_") {
			t.Errorf("expected correlation id, got %q", r.Header.Get("X-Correlation-Id"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_items":[],"_meta":{"page":2,"max_results":100,"total":100}}`))
	}))
	defer server.Close()

	page, err := newTestClient(server).ListNodes(context.Background(), Query{
		Where:      map[string]any{"node_type": "nt_shot"},
		MaxResults: 100,
		Page:       2,
	})
	if err != nil {
		t.Fatalf("list nodes failed: %v", err)
	}
	if page.HasNext() {
		t.Fatalf("expected last page, got %+v", page.Meta)
	}
}

func TestHTTPClientGetNodeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"_status":"ERR","_error":{"code":404,"message":"The requested URL was not found on the server."}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).GetNode(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected *HTTPError with 404, got %T %v", err, err)
	}
}

func TestHTTPClientCreateNodeMergesServerFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/nodes" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var doc map[string]any
		if err := json.Unmarshal(body, &doc); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if _, ok := doc["_id"]; ok {
			t.Errorf("document must not carry meta fields: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"n_42","_etag":"etag_1","_created":"Mon, 01 Jan 2024 00:00:00 GMT","_updated":"Mon, 01 Jan 2024 00:00:00 GMT","_status":"OK"}`))
	}))
	defer server.Close()

	created, err := newTestClient(server).CreateNode(context.Background(), validShot())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID != "n_42" || created.ETag != "etag_1" {
		t.Fatalf("expected server id and etag, got %+v", created)
	}
	if created.Properties.CutOut != 58 || created.Name != "sh010" {
		t.Fatalf("expected document fields kept, got %+v", created)
	}
}

func TestHTTPClientUpdateSendsIfMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/nodes/n_1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("If-Match") != "etag_1" {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_id":"n_1","_etag":"etag_2","_status":"OK"}`))
	}))
	defer server.Close()

	node := validShot()
	node.ID = "n_1"
	node.ETag = "etag_1"
	updated, err := newTestClient(server).UpdateNode(context.Background(), node)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.ETag != "etag_2" {
		t.Fatalf("expected refreshed etag, got %q", updated.ETag)
	}

	node.ETag = "etag_stale"
	_, err = newTestClient(server).UpdateNode(context.Background(), node)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected precondition failure for stale etag, got %v", err)
	}
}

func TestHTTPClientRejectsInvalidDocumentWithoutCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	node := validShot()
	node.Properties.Status = "archived"
	_, err := newTestClient(server).CreateNode(context.Background(), node)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no request for invalid document, got %d", calls)
	}
}

func TestHTTPClientMapsServerValidationIssues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"_status":"ERR","_issues":{"node_type":"unknown node type"},"_error":{"code":422,"message":"Insertion failure"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).CreateNode(context.Background(), validShot())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if httpErr.Issues["node_type"] != "unknown node type" {
		t.Fatalf("expected issues to be decoded, got %+v", httpErr.Issues)
	}
	if !strings.Contains(err.Error(), "node_type: unknown node type") {
		t.Fatalf("expected issues in message, got %q", err.Error())
	}
}

func TestAllPagesFollowsPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`{"_items":[{"_id":"a","name":"a","node_type":"nt"},{"_id":"b","name":"b","node_type":"nt"}],"_meta":{"page":1,"max_results":2,"total":3},"_links":{"next":{"href":"nodes?page=2"}}}`))
		case "2":
			_, _ = w.Write([]byte(`{"_items":[{"_id":"c","name":"c","node_type":"nt"}],"_meta":{"page":2,"max_results":2,"total":3}}`))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	first, err := client.ListNodes(context.Background(), Query{MaxResults: 2, Page: 1})
	if err != nil {
		t.Fatalf("list first page failed: %v", err)
	}
	if !first.Truncated() || !first.HasNext() {
		t.Fatalf("expected first page to report truncation, got %+v", first.Meta)
	}

	all, err := AllPages(context.Background(), client.ListNodes, Query{MaxResults: 2})
	if err != nil {
		t.Fatalf("all pages failed: %v", err)
	}
	if len(all.Items) != 3 || all.Items[2].ID != "c" {
		t.Fatalf("expected three merged items, got %+v", all.Items)
	}
	if all.Truncated() {
		t.Fatalf("merged listing should not be truncated")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("2"); got != 2*time.Second {
		t.Fatalf("expected 2s, got %s", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Fatalf("expected zero for empty header, got %s", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Fatalf("expected zero for invalid header, got %s", got)
	}
}
