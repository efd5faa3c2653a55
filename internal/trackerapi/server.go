package trackerapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/attract-vse/attract/internal/attractapi"
)

const (
	defaultPageSize = 25
	maxPageSize     = 500
)

type Logger interface {
	Printf(format string, args ...any)
}

type ServerConfig struct {
	MaxBodyBytes    int64
	DefaultPageSize int
	MaxPageSize     int
	Logger          Logger
}

// Server exposes a Tracker over the node_types, nodes and tokens resources.
type Server struct {
	tracker *Tracker
	cfg     ServerConfig
	hub     *eventHub
}

func NewServer(tracker *Tracker) *Server {
	return NewServerWithConfig(tracker, ServerConfig{})
}

func NewServerWithConfig(tracker *Tracker, cfg ServerConfig) *Server {
	if tracker == nil {
		tracker = NewTracker()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = maxPageSize
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = defaultPageSize
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = cfg.MaxPageSize
	}
	return &Server{
		tracker: tracker,
		cfg:     cfg,
		hub:     newEventHub(),
	}
}

func (s *Server) Tracker() *Tracker {
	return s.tracker
}

// Close ends every open event stream.
func (s *Server) Close() {
	s.hub.close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if id := getCorrelationID(r); id != "" {
		w.Header().Set("X-Correlation-Id", id)
	}
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	var route string
	switch {
	case len(parts) == 1 && parts[0] == "events" && r.Method == http.MethodGet:
		route = "events"
	case len(parts) == 1 && parts[0] == attractapi.ResourceNodeTypes && r.Method == http.MethodGet:
		route = "list_node_types"
	case len(parts) == 1 && parts[0] == attractapi.ResourceTokens && r.Method == http.MethodGet:
		route = "list_tokens"
	case len(parts) == 1 && parts[0] == attractapi.ResourceNodes && r.Method == http.MethodGet:
		route = "list_nodes"
	case len(parts) == 1 && parts[0] == attractapi.ResourceNodes && r.Method == http.MethodPost:
		route = "create_node"
	case len(parts) == 2 && parts[0] == attractapi.ResourceNodes && r.Method == http.MethodGet:
		route = "get_node"
	case len(parts) == 2 && parts[0] == attractapi.ResourceNodes && r.Method == http.MethodPut:
		route = "replace_node"
	case len(parts) == 2 && parts[0] == attractapi.ResourceNodes && r.Method == http.MethodDelete:
		route = "delete_node"
	default:
		writeError(w, http.StatusNotFound, "The requested URL was not found on the server.", nil)
		return
	}

	if _, authErr := s.authorizeBearer(r.Header.Get("Authorization")); authErr != nil {
		writeError(w, authErr.status, authErr.message, nil)
		return
	}

	switch route {
	case "events":
		s.handleEvents(w, r)
	case "list_node_types":
		s.handleList(w, r, attractapi.ResourceNodeTypes)
	case "list_tokens":
		s.handleList(w, r, attractapi.ResourceTokens)
	case "list_nodes":
		s.handleList(w, r, attractapi.ResourceNodes)
	case "create_node":
		s.handleCreateNode(w, r)
	case "get_node":
		s.handleGetNode(w, r, parts[1])
	case "replace_node":
		s.handleReplaceNode(w, r, parts[1])
	case "delete_node":
		s.handleDeleteNode(w, r, parts[1])
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, resource string) {
	query := r.URL.Query()
	where, err := parseWhere(query.Get("where"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unable to parse `where` clause", nil)
		return
	}
	page := parseBoundedInt(query.Get("page"), 1, 1, math.MaxInt32)
	maxResults := parseBoundedInt(query.Get("max_results"), s.cfg.DefaultPageSize, 1, s.cfg.MaxPageSize)

	switch resource {
	case attractapi.ResourceNodeTypes:
		writeJSON(w, http.StatusOK, withNextLink(s.tracker.ListNodeTypes(where, page, maxResults), resource, query))
	case attractapi.ResourceTokens:
		writeJSON(w, http.StatusOK, withNextLink(s.tracker.ListTokens(where, page, maxResults), resource, query))
	default:
		writeJSON(w, http.StatusOK, withNextLink(s.tracker.ListNodes(where, page, maxResults), resource, query))
	}
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request, id string) {
	node, err := s.tracker.GetNode(id)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	w.Header().Set("ETag", `"`+node.ETag+`"`)
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.decodeNodeDocument(w, r)
	if !ok {
		return
	}
	node, err := s.tracker.CreateNode(doc)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	s.logf("created node %s (%s)", node.ID, node.Name)
	s.publish(attractapi.EventNodeCreated, node)
	w.Header().Set("Location", "/"+attractapi.ResourceNodes+"/"+node.ID)
	w.Header().Set("ETag", `"`+node.ETag+`"`)
	writeJSON(w, http.StatusCreated, writeResult(node))
}

func (s *Server) handleReplaceNode(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := s.tracker.GetNode(id); err != nil {
		writeTrackerError(w, err)
		return
	}
	ifMatch := normalizeIfMatchHeader(r.Header.Get("If-Match"))
	if ifMatch == "" {
		writeTrackerError(w, ErrMissingPrecondition)
		return
	}
	doc, ok := s.decodeNodeDocument(w, r)
	if !ok {
		return
	}
	node, err := s.tracker.ReplaceNode(id, ifMatch, doc)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	s.publish(attractapi.EventNodeUpdated, node)
	w.Header().Set("ETag", `"`+node.ETag+`"`)
	writeJSON(w, http.StatusOK, writeResult(node))
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request, id string) {
	ifMatch := normalizeIfMatchHeader(r.Header.Get("If-Match"))
	node, err := s.tracker.DeleteNode(id, ifMatch)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	s.logf("deleted node %s", node.ID)
	s.publish(attractapi.EventNodeDeleted, node)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decodeNodeDocument(w http.ResponseWriter, r *http.Request) (attractapi.NodeDocument, bool) {
	body, ok := s.readRequestBody(w, r)
	if !ok {
		return attractapi.NodeDocument{}, false
	}
	if err := attractapi.ValidateNodeDocument(body); err != nil {
		var validationErr *attractapi.ValidationError
		message := err.Error()
		if errors.As(err, &validationErr) {
			message = validationErr.Err.Error()
		}
		writeError(w, http.StatusUnprocessableEntity, "Insertion failure: 1 document(s) contain(s) error(s)", map[string]string{
			"document": message,
		})
		return attractapi.NodeDocument{}, false
	}
	var doc attractapi.NodeDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", nil)
		return attractapi.NodeDocument{}, false
	}
	return doc, true
}

func (s *Server) readRequestBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body exceeds configured limit", nil)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "failed to read request body", nil)
		return nil, false
	}
	return body, true
}

func (s *Server) publish(eventType string, node attractapi.Node) {
	s.hub.publish(attractapi.NodeEvent{
		Type:      eventType,
		NodeID:    node.ID,
		NodeType:  node.NodeType,
		ETag:      node.ETag,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) logf(format string, args ...any) {
	if s.cfg.Logger == nil {
		return
	}
	s.cfg.Logger.Printf(format, args...)
}

type writeResponse struct {
	ID      string `json:"_id"`
	ETag    string `json:"_etag"`
	Created string `json:"_created"`
	Updated string `json:"_updated"`
	Status  string `json:"_status"`
}

func writeResult(node attractapi.Node) writeResponse {
	return writeResponse{
		ID:      node.ID,
		ETag:    node.ETag,
		Created: node.Created,
		Updated: node.Updated,
		Status:  "OK",
	}
}

func withNextLink[T any](page attractapi.Page[T], resource string, query url.Values) attractapi.Page[T] {
	if page.Meta.Page*page.Meta.MaxResults >= page.Meta.Total {
		return page
	}
	next := url.Values{}
	if where := query.Get("where"); where != "" {
		next.Set("where", where)
	}
	next.Set("max_results", strconv.Itoa(page.Meta.MaxResults))
	next.Set("page", strconv.Itoa(page.Meta.Page+1))
	page.Links.Next = &attractapi.Link{Href: resource + "?" + next.Encode(), Title: "next page"}
	return page
}

func writeTrackerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "The requested URL was not found on the server.", nil)
	case errors.Is(err, ErrMissingPrecondition):
		writeError(w, http.StatusPreconditionRequired, "To edit a document its etag must be provided using the If-Match header", nil)
	case errors.Is(err, ErrPreconditionFailed):
		writeError(w, http.StatusPreconditionFailed, "Client and server etags don't match", nil)
	case errors.Is(err, ErrUnknownNodeType):
		writeError(w, http.StatusUnprocessableEntity, "Insertion failure: 1 document(s) contain(s) error(s)", map[string]string{
			"node_type": "value must exist in resource 'node_types'",
		})
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
	}
}

func parseWhere(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var where map[string]any
	if err := json.Unmarshal([]byte(raw), &where); err != nil {
		return nil, fmt.Errorf("%w: where: %v", ErrInvalidInput, err)
	}
	return where, nil
}

func getCorrelationID(r *http.Request) string {
	return r.Header.Get("X-Correlation-Id")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, issues map[string]string) {
	payload := map[string]any{
		"_status": "ERR",
		"_error": map[string]any{
			"code":    status,
			"message": message,
		},
	}
	if len(issues) > 0 {
		payload["_issues"] = issues
	}
	writeJSON(w, status, payload)
}

func normalizeIfMatchHeader(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "W/") || strings.HasPrefix(value, "w/") {
		value = strings.TrimSpace(value[2:])
	}
	if len(value) >= 2 && strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") {
		value = strings.TrimSpace(value[1 : len(value)-1])
	}
	return value
}

func parseBoundedInt(raw string, fallback, min, max int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	if parsed < min {
		return fallback
	}
	if parsed > max {
		return max
	}
	return parsed
}
