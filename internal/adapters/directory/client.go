// Package directory talks to the backend room registry over HTTP.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/DriveChat/internal/core"
	"github.com/dkeye/DriveChat/internal/domain"
)

// ErrUnavailable wraps every failure to reach the directory or to read
// its answer. Rejections by the directory are *core.RejectedError instead.
var ErrUnavailable = errors.New("directory unavailable")

// DefaultTimeout bounds a whole directory request.
const DefaultTimeout = 10 * time.Second

type Client struct {
	base *url.URL
	http *http.Client
}

var _ core.Directory = (*Client)(nil)

// New returns a client for the directory rooted at baseURL. A nil
// httpClient means http.DefaultClient.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse directory url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("directory url %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) ListRooms(ctx context.Context) (core.Listing, error) {
	var listing core.Listing
	if err := c.do(ctx, http.MethodGet, c.endpoint("/rooms", nil), nil, &listing); err != nil {
		return core.Listing{}, err
	}
	if listing.Occupancy == nil {
		listing.Occupancy = map[domain.RoomID]int{}
	}
	if listing.Capacity == nil {
		listing.Capacity = map[domain.RoomID]int{}
	}
	log.Debug().Str("module", "adapters.directory").Int("rooms", len(listing.Rooms)).Msg("listed rooms")
	return listing, nil
}

func (c *Client) CreateRoom(ctx context.Context, req core.CreateRoomRequest) (int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("encode create room: %w", err)
	}
	var resp struct {
		Capacity int `json:"capacity"`
	}
	if err := c.do(ctx, http.MethodPost, c.endpoint("/rooms", nil), body, &resp); err != nil {
		return 0, err
	}
	log.Info().Str("module", "adapters.directory").Str("room", string(req.Name)).Int("capacity", resp.Capacity).Msg("room created")
	return resp.Capacity, nil
}

func (c *Client) FindRandomRoom(ctx context.Context, t domain.TransportType, role domain.Role) (domain.Room, bool, error) {
	q := url.Values{}
	q.Set("transport_type", string(t))
	q.Set("user_type", string(role))
	var room domain.Room
	if err := c.do(ctx, http.MethodGet, c.endpoint("/rooms/random", q), nil, &room); err != nil {
		return domain.Room{}, false, err
	}
	if room.ID == "" {
		return domain.Room{}, false, nil
	}
	return room, true, nil
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeRejection(resp.StatusCode, raw)
	}
	if len(bytes.TrimSpace(raw)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrUnavailable, method, req.URL.Path, err)
	}
	return nil
}

// decodeRejection accepts both {"detail": "..."} and gin's {"error": "..."}.
func decodeRejection(status int, raw []byte) error {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	_ = json.Unmarshal(raw, &payload)
	detail := payload.Detail
	if detail == "" {
		detail = payload.Error
	}
	if detail == "" {
		if status >= 500 {
			return fmt.Errorf("%w: status %d", ErrUnavailable, status)
		}
		detail = http.StatusText(status)
	}
	return &core.RejectedError{Status: status, Detail: detail}
}
