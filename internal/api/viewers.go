package api

import (
	"context"
	"net/http"

	"github.com/CursedScorpio/fleetdeck/internal/fleet"
)

// ViewerUpdate is a partial update for a viewer. Nil fields are omitted
// from the payload; the conversion from "fields the user touched" to
// wire format happens here and nowhere else.
type ViewerUpdate struct {
	// StreamURL is the stream the viewer should watch.
	StreamURL *string `json:"streamUrl,omitempty"`

	// MaxTabs is the tab ceiling, 1-32.
	MaxTabs *int `json:"maxTabs,omitempty"`

	// ChatParsingEnabled toggles chat monitoring eligibility.
	ChatParsingEnabled *bool `json:"chatParsingEnabled,omitempty"`

	// ResourceLimits replaces the viewer's limits as a unit
	// (CPU percent, memory MB, network Mbps).
	ResourceLimits *fleet.ResourceLimits `json:"resourceLimits,omitempty"`
}

// tabIndexBody addresses one tab by its current position.
type tabIndexBody struct {
	TabIndex int `json:"tabIndex"`
}

// ListViewers fetches all viewers. Concurrent calls share one request.
func (c *Client) ListViewers(ctx context.Context) ([]fleet.Viewer, error) {
	out, err := c.getShared(ctx, "/viewers", func() any { return &[]fleet.Viewer{} })
	if err != nil {
		return nil, err
	}
	return *out.(*[]fleet.Viewer), nil
}

// GetViewer fetches one full viewer snapshot.
func (c *Client) GetViewer(ctx context.Context, id string) (fleet.Viewer, error) {
	var v fleet.Viewer
	err := c.do(ctx, http.MethodGet, "/viewers/"+pathEscape(id), nil, &v)
	return v, err
}

// ViewerStatus fetches the lightweight partial status snapshot.
func (c *Client) ViewerStatus(ctx context.Context, id string) (fleet.ViewerPatch, error) {
	var patch fleet.ViewerPatch
	err := c.do(ctx, http.MethodGet, "/viewers/"+pathEscape(id)+"/status", nil, &patch)
	return patch, err
}

// ViewerLogs fetches the viewer's recent log tail.
func (c *Client) ViewerLogs(ctx context.Context, id string) ([]fleet.LogEntry, error) {
	var entries []fleet.LogEntry
	err := c.do(ctx, http.MethodGet, "/viewers/"+pathEscape(id)+"/logs", nil, &entries)
	return entries, err
}

// UpdateViewer applies a partial update.
func (c *Client) UpdateViewer(ctx context.Context, id string, upd ViewerUpdate) (fleet.Viewer, error) {
	var v fleet.Viewer
	err := c.do(ctx, http.MethodPut, "/viewers/"+pathEscape(id), upd, &v)
	return v, err
}

// StopViewer stops one viewer without touching its box.
func (c *Client) StopViewer(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/viewers/"+pathEscape(id)+"/stop", nil, nil)
}

// Screenshot captures the viewer's active page.
func (c *Client) Screenshot(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/viewers/"+pathEscape(id)+"/screenshot", nil, nil)
}

// AddTab opens a new tab. The backend enforces maxTabs as well; the tab
// manager's local check just avoids a doomed request.
func (c *Client) AddTab(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/viewers/"+pathEscape(id)+"/add-tab", nil, nil)
}

// CloseTab closes the tab at the given position.
func (c *Client) CloseTab(ctx context.Context, id string, tabIndex int) error {
	return c.do(ctx, http.MethodPost, "/viewers/"+pathEscape(id)+"/close-tab", tabIndexBody{TabIndex: tabIndex}, nil)
}

// TabScreenshot captures one tab.
func (c *Client) TabScreenshot(ctx context.Context, id string, tabIndex int) error {
	return c.do(ctx, http.MethodPost, "/viewers/"+pathEscape(id)+"/tab-screenshot", tabIndexBody{TabIndex: tabIndex}, nil)
}

// ForceTabLowestQuality drops one tab's stream to its lowest quality.
func (c *Client) ForceTabLowestQuality(ctx context.Context, id string, tabIndex int) error {
	return c.do(ctx, http.MethodPost, "/viewers/"+pathEscape(id)+"/force-tab-lowest-quality", tabIndexBody{TabIndex: tabIndex}, nil)
}
