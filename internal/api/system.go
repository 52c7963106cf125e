package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/CursedScorpio/fleetdeck/internal/fleet"
)

// ResourceConfigUpdate adjusts the backend resource manager. Field names
// carry their units; nil fields are left unchanged.
type ResourceConfigUpdate struct {
	Enabled              *bool `json:"enabled,omitempty"`
	CheckIntervalSeconds *int  `json:"checkIntervalSeconds,omitempty"`
	IdleTimeoutMinutes   *int  `json:"idleTimeoutMinutes,omitempty"`
	MemoryLimitMB        *int  `json:"memoryLimitMb,omitempty"`
}

// stopIdleBody carries the force flag for StopIdleViewers.
type stopIdleBody struct {
	Force bool `json:"force"`
}

// SystemMetrics fetches the host-level metrics snapshot.
func (c *Client) SystemMetrics(ctx context.Context) (fleet.SystemMetrics, error) {
	var m fleet.SystemMetrics
	err := c.do(ctx, http.MethodGet, "/system/metrics", nil, &m)
	return m, err
}

// SystemResources fetches the per-entity resource usage breakdown.
func (c *Client) SystemResources(ctx context.Context) (fleet.ResourceReport, error) {
	var r fleet.ResourceReport
	err := c.do(ctx, http.MethodGet, "/system/resources", nil, &r)
	return r, err
}

// UpdateResourceConfig applies a partial resource manager update.
func (c *Client) UpdateResourceConfig(ctx context.Context, upd ResourceConfigUpdate) error {
	return c.do(ctx, http.MethodPut, "/system/resources/config", upd, nil)
}

// RunResourceCheck triggers an immediate resource manager pass.
func (c *Client) RunResourceCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/system/resources/check", nil, nil)
}

// StopIdleViewers asks the backend to stop viewers idle past the
// timeout. force ignores the timeout and stops every idle viewer now.
func (c *Client) StopIdleViewers(ctx context.Context, force bool) error {
	return c.do(ctx, http.MethodPost, "/system/resources/stop-idle", stopIdleBody{Force: force}, nil)
}

// ChatMessages fetches the recent chat messages observed on a stream.
func (c *Client) ChatMessages(ctx context.Context, streamURL string) ([]fleet.ChatMessage, error) {
	var msgs []fleet.ChatMessage
	err := c.do(ctx, http.MethodGet, "/streams/chat?url="+url.QueryEscape(streamURL), nil, &msgs)
	return msgs, err
}
