// Package notify delivers notifications to the user through a platform-specific channel.
package notify

import "context"

// Permission is the user's answer to "may this app show notifications".
type Permission int

const (
	PermissionUnset Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "default"
	}
}

// Notification is a single message shown to the user.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	// Tag identifies what produced the notification, e.g. "periodic" or "daily:morning".
	Tag string `json:"tag,omitempty"`
}

// Text renders n on one line as "icon title: body".
func (n Notification) Text() string {
	message := n.Title
	if n.Body != "" {
		message = n.Title + ": " + n.Body
	}
	if n.Icon != "" {
		message = n.Icon + " " + message
	}
	return message
}

// Platform is the host notification API. A nil Platform means the host has no
// notification support.
type Platform interface {
	// PermissionState reports the current permission without prompting.
	PermissionState() Permission
	// RequestPermission asks the user and returns the resulting state.
	RequestPermission(ctx context.Context) (Permission, error)
	// Emit shows n. Delivery failures are handled by the platform.
	Emit(n Notification)
}
