package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to one peer instance's SyncHandler over HTTP. Every call
// takes a context so the 5s switch/bus round-trip timeout from spec §5
// can be enforced by the caller.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient builds a Client for the peer reachable at baseURL
// (e.g. "http://10.0.0.2:7070").
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, hc: &http.Client{Timeout: 5 * time.Second}}
}

// SendHeartbeat POSTs a HEARTBEAT to the peer.
func (c *Client) SendHeartbeat(ctx context.Context, self Member, epoch uint64) error {
	body := heartbeatBody{AreaID: self.AreaID, InstanceID: self.InstanceID, Epoch: epoch}
	return c.post(ctx, "/heartbeat", body)
}

// AnnounceRole POSTs a ROLE_ANNOUNCE to the peer.
func (c *Client) AnnounceRole(ctx context.Context, self Member, epoch uint64) error {
	body := roleAnnounceBody{AreaID: self.AreaID, InstanceID: self.InstanceID, Epoch: epoch}
	return c.post(ctx, "/role", body)
}

// PushState PUTs a STATE_SYNC payload to the peer (master pushing to a
// joining slave).
func (c *Client) PushState(ctx context.Context, payload StateSyncPayload) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/sync", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("cluster: push state to %s: status %d", c.baseURL, resp.StatusCode)
	}
	return nil
}

// FetchState GETs the peer's current STATE_SYNC view (used by a slave
// joining and catching up before serving).
func (c *Client) FetchState(ctx context.Context) (StateSyncPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sync", nil)
	if err != nil {
		return StateSyncPayload{}, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return StateSyncPayload{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return StateSyncPayload{}, fmt.Errorf("cluster: fetch state from %s: status %d", c.baseURL, resp.StatusCode)
	}
	var out StateSyncPayload
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StateSyncPayload{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("cluster: post %s to %s: status %d", path, c.baseURL, resp.StatusCode)
	}
	return nil
}
