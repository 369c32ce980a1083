package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/streamfold/wan-publisher/internal/wanstats"
	"go.uber.org/zap"
)

// Client is a client for the control server
type Client struct {
	endpointUrl *url.URL
	log         *zap.Logger
	client      *http.Client
}

// NewClient creates a new control server client
func NewClient(endpoint string, log *zap.Logger) (*Client, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = fmt.Sprintf("http://%s", endpoint)
	}

	endpointUrl, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}

	return &Client{
		endpointUrl: endpointUrl,
		log:         log,
		client:      &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Status fetches and decodes the status of a single publisher.
func (c *Client) Status(ctx context.Context, name string) (*wanstats.PublisherStatus, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/publishers/"+url.PathEscape(name))
	if err != nil {
		return nil, err
	}

	status, err := wanstats.DecodeStatus(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode status of %s: %w", name, err)
	}
	return status, nil
}

// Statuses fetches and decodes the status of every publisher.
func (c *Client) Statuses(ctx context.Context) (map[string]*wanstats.PublisherStatus, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/publishers")
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal statuses: %w", err)
	}

	out := make(map[string]*wanstats.PublisherStatus, len(raw))
	for name, doc := range raw {
		status, err := wanstats.DecodeStatus(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to decode status of %s: %w", name, err)
		}
		out[name] = status
	}
	return out, nil
}

// Control applies action to the named publisher and returns its new state.
func (c *Client) Control(ctx context.Context, name string, action Action) (wanstats.PublisherState, error) {
	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/publishers/%s/%s", url.PathEscape(name), action))
	if err != nil {
		return wanstats.StateReplicating, err
	}

	var res ActionResult
	if err := json.Unmarshal(body, &res); err != nil {
		return wanstats.StateReplicating, fmt.Errorf("failed to unmarshal action result: %w", err)
	}

	c.log.Debug("applied publisher action",
		zap.String("publisher", name),
		zap.String("action", string(action)),
		zap.String("state", res.State),
	)

	return wanstats.ParseState(res.State)
}

func (c *Client) do(ctx context.Context, method string, path string) ([]byte, error) {
	url := c.endpointUrl.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPublisher, errorMessage(body))
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, errorMessage(body))
	default:
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, errorMessage(body))
	}
}

func errorMessage(body []byte) string {
	var res ErrorResult
	if err := json.Unmarshal(body, &res); err != nil || res.Error == "" {
		return strings.TrimSpace(string(body))
	}
	return res.Error
}
