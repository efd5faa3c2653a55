package attractapi

import (
	"context"
	"net/http"
	"strings"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// WatchNodes subscribes to the node event socket and calls handle for every
// event until ctx is done or the connection drops.
func (c *HTTPClient) WatchNodes(ctx context.Context, handle func(NodeEvent)) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	header.Set("X-Correlation-Id", correlationID())
	conn, resp, err := websocket.Dial(ctx, websocketURL(c.baseURL)+"/events", &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return &HTTPError{StatusCode: resp.StatusCode}
		}
		if isContextError(err) {
			return err
		}
		return &TransportError{Method: http.MethodGet, Path: "/events", Err: err}
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		var event NodeEvent
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return &TransportError{Method: http.MethodGet, Path: "/events", Err: err}
		}
		if strings.TrimSpace(event.Type) == "" {
			continue
		}
		handle(event)
	}
}

func websocketURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
