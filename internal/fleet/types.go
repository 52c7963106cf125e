// Package fleet holds the live operational model of the box/viewer fleet:
// the entity types, the central store they live in, and the components
// that keep the store fresh and consistent (status synchronizer, tab
// lifecycle manager, resource classifier, chat stream selector).
//
// The package depends on its collaborators only through the small
// interfaces declared next to each consumer; the REST client in
// internal/api implements all of them.
package fleet

import (
	"time"
)

// Status is the lifecycle state shared by boxes and viewers.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// IsTerminal reports whether the entity has settled and polling its
// status is pointless until a mutating action revives it.
func (s Status) IsTerminal() bool {
	return s == StatusIdle || s == StatusError
}

// IsActive reports whether the entity is running or in transition, the
// states during which its status is worth polling.
func (s Status) IsActive() bool {
	return s == StatusStarting || s == StatusRunning || s == StatusStopping
}

// EntityKind distinguishes poll targets and resource snapshot owners.
type EntityKind string

const (
	KindBox    EntityKind = "box"
	KindViewer EntityKind = "viewer"
	KindSystem EntityKind = "system"
)

// Box is a provisioned host running zero or more viewers behind a VPN.
type Box struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Status    Status   `json:"status"`
	ViewerIDs []string `json:"viewerIds,omitempty"`
	VPNConfig string   `json:"vpnConfig,omitempty"`
	StreamURL string   `json:"streamUrl,omitempty"`
	IPAddress string   `json:"ipAddress,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Viewer is one simulated browser session hosted on a box.
type Viewer struct {
	ID                 string         `json:"id"`
	BoxID              string         `json:"boxId"`
	Status             Status         `json:"status"`
	StreamURL          string         `json:"streamUrl,omitempty"`
	Streamer           string         `json:"streamer,omitempty"`
	MaxTabs            int            `json:"maxTabs"`
	Tabs               []Tab          `json:"tabs"`
	PlaybackStatus     string         `json:"playbackStatus,omitempty"`
	ChatParsingEnabled bool           `json:"chatParsingEnabled"`
	ResourceLimits     ResourceLimits `json:"resourceLimits"`
	Error              string         `json:"error,omitempty"`
}

// Tab is one browser page inside a viewer. A tab has no stable identity;
// it is addressed by its position in the viewer's ordered list, and
// positions are reused after a close reindexes the list.
type Tab struct {
	Status            Status `json:"status"`
	LastScreenshotURL string `json:"lastScreenshotUrl,omitempty"`
	PlaybackStatus    string `json:"playbackStatus,omitempty"`
}

// ResourceLimits are the per-entity ceilings severity is judged against.
// CPU in percent, memory in MB, network in Mbps.
type ResourceLimits struct {
	CPULimit     float64 `json:"cpuLimit"`
	MemoryLimit  float64 `json:"memoryLimit"`
	NetworkLimit float64 `json:"networkLimit"`
}

// ResourceSnapshot is a point-in-time usage measurement for one entity.
// The snapshot carries the limits it was measured against; for boxes,
// which have no limits of their own, this is the only limit source.
// Units match ResourceLimits; NetworkRx/Tx sum against NetworkLimit.
type ResourceSnapshot struct {
	CPU            float64        `json:"cpu"`
	Memory         float64        `json:"memory"`
	NetworkRx      float64        `json:"networkRx"`
	NetworkTx      float64        `json:"networkTx"`
	ResourceLimits ResourceLimits `json:"resourceLimits"`
	LastUpdated    time.Time      `json:"lastUpdated"`
}

// SystemMetrics is the host-level view returned by /system/metrics.
type SystemMetrics struct {
	System struct {
		Memory  float64 `json:"memory"`
		LoadAvg float64 `json:"loadAvg"`
		Uptime  int64   `json:"uptime"`
	} `json:"system"`
	Application struct {
		ViewersTotal   int `json:"viewersTotal"`
		ViewersRunning int `json:"viewersRunning"`
	} `json:"application"`
	ResourceManager struct {
		Enabled           bool `json:"enabled"`
		CheckIntervalSecs int  `json:"checkIntervalSeconds"`
		IdleTimeoutMins   int  `json:"idleTimeoutMinutes"`
		StoppedForIdle    int  `json:"stoppedForIdle"`
	} `json:"resourceManager"`
}

// ResourceReport is the per-entity breakdown returned by the resources
// endpoint: one snapshot per box and per viewer, keyed by ID.
type ResourceReport struct {
	Boxes   map[string]ResourceSnapshot `json:"boxes"`
	Viewers map[string]ResourceSnapshot `json:"viewers"`
}

// ChatMessage is one message observed on a monitored stream.
type ChatMessage struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// LogEntry is one line of a viewer's log tail.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// BoxPatch is a partial box snapshot, as returned by the status endpoint.
// Nil fields were absent from the response and leave the stored value
// untouched.
type BoxPatch struct {
	Status    *Status  `json:"status,omitempty"`
	ViewerIDs []string `json:"viewerIds,omitempty"`
	StreamURL *string  `json:"streamUrl,omitempty"`
	IPAddress *string  `json:"ipAddress,omitempty"`
	Error     *string  `json:"error,omitempty"`
}

// ViewerPatch is a partial viewer snapshot. The tab array, when present,
// is authoritative for tab content; the client-owned active tab pointer
// is never part of a patch.
type ViewerPatch struct {
	Status             *Status         `json:"status,omitempty"`
	StreamURL          *string         `json:"streamUrl,omitempty"`
	Streamer           *string         `json:"streamer,omitempty"`
	MaxTabs            *int            `json:"maxTabs,omitempty"`
	Tabs               *[]Tab          `json:"tabs,omitempty"`
	PlaybackStatus     *string         `json:"playbackStatus,omitempty"`
	ChatParsingEnabled *bool           `json:"chatParsingEnabled,omitempty"`
	ResourceLimits     *ResourceLimits `json:"resourceLimits,omitempty"`
	Error              *string         `json:"error,omitempty"`
}

// Intervals carries the poll cadences, converted from config once at the
// boundary. Zero values fall back to the defaults below.
type Intervals struct {
	Status    time.Duration // box/viewer status
	System    time.Duration // system metrics
	Resources time.Duration // per-entity resource snapshots
	Chat      time.Duration // chat messages
	Logs      time.Duration // viewer log tail
}

// Default poll cadences. These are fixed product defaults, not tuning
// suggestions; config may override them but the zero config must land
// here.
const (
	DefaultStatusInterval    = 15 * time.Second
	DefaultSystemInterval    = 10 * time.Second
	DefaultResourcesInterval = 5 * time.Second
	DefaultChatInterval      = 30 * time.Second
	DefaultLogsInterval      = 30 * time.Second
)

// withDefaults fills zero fields with the fixed defaults.
func (iv Intervals) withDefaults() Intervals {
	if iv.Status <= 0 {
		iv.Status = DefaultStatusInterval
	}
	if iv.System <= 0 {
		iv.System = DefaultSystemInterval
	}
	if iv.Resources <= 0 {
		iv.Resources = DefaultResourcesInterval
	}
	if iv.Chat <= 0 {
		iv.Chat = DefaultChatInterval
	}
	if iv.Logs <= 0 {
		iv.Logs = DefaultLogsInterval
	}
	return iv
}
