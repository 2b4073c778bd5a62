package models

import "time"

// DeviceRole is the label a client claims at connect time. Roles are not
// authorization; the server treats them as display metadata.
type DeviceRole string

const (
	RoleController DeviceRole = "controller"
	RoleViewer     DeviceRole = "viewer"
	RoleAgenda     DeviceRole = "agenda"
	RoleOther      DeviceRole = "other"
)

// NormalizeRole maps an arbitrary claimed role onto a known one.
func NormalizeRole(s string) DeviceRole {
	switch DeviceRole(s) {
	case RoleController, RoleViewer, RoleAgenda:
		return DeviceRole(s)
	}
	return RoleOther
}

// Device describes one live connection to a room. It exists for the
// lifetime of that connection only.
type Device struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Role        DeviceRole `json:"role"`
	ConnectedAt time.Time  `json:"connected_at"`
	LastSeen    time.Time  `json:"last_seen"`
}

// DeviceUpdate carries the patchable subset of Device attributes.
type DeviceUpdate struct {
	Name *string `json:"name,omitempty"`
	Role *string `json:"role,omitempty"`
}
