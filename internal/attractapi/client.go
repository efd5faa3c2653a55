package attractapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const DefaultBaseURL = "http://localhost:5000"

// Client is the resource API surface the sync engine consumes.
type Client interface {
	SessionToken() string
	ListNodeTypes(ctx context.Context, q Query) (NodeTypePage, error)
	ListNodes(ctx context.Context, q Query) (NodePage, error)
	ListTokens(ctx context.Context, q Query) (TokenPage, error)
	GetNode(ctx context.Context, id string) (Node, error)
	CreateNode(ctx context.Context, node Node) (Node, error)
	UpdateNode(ctx context.Context, node Node) (Node, error)
	DeleteNode(ctx context.Context, node Node) error
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

type HTTPClientOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func NewHTTPClient(baseURL, token string, httpClient *http.Client) *HTTPClient {
	return NewHTTPClientWithOptions(baseURL, token, httpClient, HTTPClientOptions{})
}

func NewHTTPClientWithOptions(baseURL, token string, httpClient *http.Client, opts HTTPClientOptions) *HTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	} else if maxRetries == 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &HTTPClient{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) SessionToken() string {
	return c.token
}

func (c *HTTPClient) ListNodeTypes(ctx context.Context, q Query) (NodeTypePage, error) {
	var out NodeTypePage
	err := c.list(ctx, ResourceNodeTypes, q, &out)
	return out, err
}

func (c *HTTPClient) ListNodes(ctx context.Context, q Query) (NodePage, error) {
	var out NodePage
	err := c.list(ctx, ResourceNodes, q, &out)
	return out, err
}

func (c *HTTPClient) ListTokens(ctx context.Context, q Query) (TokenPage, error) {
	var out TokenPage
	err := c.list(ctx, ResourceTokens, q, &out)
	return out, err
}

func (c *HTTPClient) GetNode(ctx context.Context, id string) (Node, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Node{}, fmt.Errorf("%w: empty node id", ErrNotFound)
	}
	var out Node
	err := c.doJSON(ctx, http.MethodGet, "/"+ResourceNodes+"/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (c *HTTPClient) CreateNode(ctx context.Context, node Node) (Node, error) {
	if err := ValidateNode(node); err != nil {
		return Node{}, err
	}
	var resp writeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/"+ResourceNodes, nil, node.Document(), &resp); err != nil {
		return Node{}, err
	}
	if resp.ID == "" {
		return Node{}, fmt.Errorf("create node: server returned no id")
	}
	created := node
	created.ID = resp.ID
	created.ETag = resp.ETag
	created.Created = resp.Created
	created.Updated = resp.Updated
	return created, nil
}

func (c *HTTPClient) UpdateNode(ctx context.Context, node Node) (Node, error) {
	if strings.TrimSpace(node.ID) == "" {
		return Node{}, fmt.Errorf("%w: update without node id", ErrNotFound)
	}
	if err := ValidateNode(node); err != nil {
		return Node{}, err
	}
	headers := map[string]string{}
	if node.ETag != "" {
		headers["If-Match"] = node.ETag
	}
	var resp writeResponse
	if err := c.doJSON(ctx, http.MethodPut, "/"+ResourceNodes+"/"+url.PathEscape(node.ID), headers, node.Document(), &resp); err != nil {
		return Node{}, err
	}
	updated := node
	if resp.ETag != "" {
		updated.ETag = resp.ETag
	}
	if resp.Updated != "" {
		updated.Updated = resp.Updated
	}
	return updated, nil
}

func (c *HTTPClient) DeleteNode(ctx context.Context, node Node) error {
	if strings.TrimSpace(node.ID) == "" {
		return fmt.Errorf("%w: delete without node id", ErrNotFound)
	}
	headers := map[string]string{}
	if node.ETag != "" {
		headers["If-Match"] = node.ETag
	}
	return c.doJSON(ctx, http.MethodDelete, "/"+ResourceNodes+"/"+url.PathEscape(node.ID), headers, nil, nil)
}

func (c *HTTPClient) list(ctx context.Context, resource string, q Query, out any) error {
	values := url.Values{}
	where, err := q.whereJSON()
	if err != nil {
		return err
	}
	if where != "" {
		values.Set("where", where)
	}
	if q.MaxResults > 0 {
		values.Set("max_results", strconv.Itoa(q.MaxResults))
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	requestPath := "/" + resource
	if encoded := values.Encode(); encoded != "" {
		requestPath += "?" + encoded
	}
	return c.doJSON(ctx, http.MethodGet, requestPath, nil, nil, out)
}

func (c *HTTPClient) doJSON(
	ctx context.Context,
	method, requestPath string,
	headers map[string]string,
	body any,
	out any,
) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
		if err != nil {
			return err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Correlation-Id", correlationID())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if attempt < c.maxRetries {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return &TransportError{Method: method, Path: requestPath, Err: err}
		}
		payloadBytes, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			if attempt < c.maxRetries {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return &TransportError{Method: method, Path: requestPath, Err: readErr}
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payloadBytes) == 0 {
				return nil
			}
			return json.Unmarshal(payloadBytes, out)
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < c.maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		var errPayload errorResponse
		_ = json.Unmarshal(payloadBytes, &errPayload)
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    errPayload.Error.Message,
			Issues:     errPayload.Issues,
		}
	}
}

func (c *HTTPClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	maxDelay := c.maxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > maxDelay {
			return maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := time.Parse(time.RFC1123, header); err == nil {
		delta := time.Until(ts)
		if delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func correlationID() string {
	return "attract_" + strings.ToLower(ulid.Make().String())
}

// AllPages walks every page of a listing and concatenates the items.
func AllPages[T any](ctx context.Context, list func(context.Context, Query) (Page[T], error), q Query) (Page[T], error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	var merged Page[T]
	for {
		page, err := list(ctx, q)
		if err != nil {
			return merged, err
		}
		merged.Items = append(merged.Items, page.Items...)
		merged.Meta = page.Meta
		if !page.HasNext() || len(page.Items) == 0 {
			break
		}
		q.Page++
	}
	merged.Meta.Page = 1
	merged.Links = Links{}
	return merged, nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
