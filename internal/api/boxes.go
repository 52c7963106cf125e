package api

import (
	"context"
	"net/http"

	"github.com/CursedScorpio/fleetdeck/internal/fleet"
)

// CreateBoxRequest is the payload for provisioning a new box.
type CreateBoxRequest struct {
	Name      string `json:"name"`
	VPNConfig string `json:"vpnConfig,omitempty"`
	StreamURL string `json:"streamUrl,omitempty"`
}

// BoxUpdate is a partial update for an existing box. Nil fields are
// omitted from the payload and left untouched by the backend.
type BoxUpdate struct {
	Name      *string `json:"name,omitempty"`
	VPNConfig *string `json:"vpnConfig,omitempty"`
	StreamURL *string `json:"streamUrl,omitempty"`
}

// ListBoxes fetches all boxes. Concurrent calls share one request.
func (c *Client) ListBoxes(ctx context.Context) ([]fleet.Box, error) {
	out, err := c.getShared(ctx, "/boxes", func() any { return &[]fleet.Box{} })
	if err != nil {
		return nil, err
	}
	return *out.(*[]fleet.Box), nil
}

// GetBox fetches one full box snapshot.
func (c *Client) GetBox(ctx context.Context, id string) (fleet.Box, error) {
	var box fleet.Box
	err := c.do(ctx, http.MethodGet, "/boxes/"+pathEscape(id), nil, &box)
	return box, err
}

// BoxStatus fetches the lightweight partial status snapshot.
func (c *Client) BoxStatus(ctx context.Context, id string) (fleet.BoxPatch, error) {
	var patch fleet.BoxPatch
	err := c.do(ctx, http.MethodGet, "/boxes/"+pathEscape(id)+"/status", nil, &patch)
	return patch, err
}

// CreateBox provisions a new box.
func (c *Client) CreateBox(ctx context.Context, req CreateBoxRequest) (fleet.Box, error) {
	var box fleet.Box
	err := c.do(ctx, http.MethodPost, "/boxes", req, &box)
	return box, err
}

// UpdateBox applies a partial update.
func (c *Client) UpdateBox(ctx context.Context, id string, upd BoxUpdate) (fleet.Box, error) {
	var box fleet.Box
	err := c.do(ctx, http.MethodPut, "/boxes/"+pathEscape(id), upd, &box)
	return box, err
}

// DeleteBox removes a box and everything on it.
func (c *Client) DeleteBox(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/boxes/"+pathEscape(id), nil, nil)
}

// StartBox boots the box and its viewers.
func (c *Client) StartBox(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/boxes/"+pathEscape(id)+"/start", nil, nil)
}

// StopBox shuts the box down.
func (c *Client) StopBox(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/boxes/"+pathEscape(id)+"/stop", nil, nil)
}

// RefreshBoxIP rotates the box's VPN exit IP.
func (c *Client) RefreshBoxIP(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/boxes/"+pathEscape(id)+"/refresh-ip", nil, nil)
}
