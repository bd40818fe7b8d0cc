package notify

import (
	"context"
	"sync"
)

// Fake is an in-memory Platform that records emitted notifications.
type Fake struct {
	mu         sync.Mutex
	permission Permission
	// answer is the permission granted when RequestPermission is called while unset.
	answer   Permission
	requests int
	emitted  []Notification
}

func NewFake(permission Permission) *Fake {
	return &Fake{permission: permission, answer: PermissionGranted}
}

// AnswerWith sets the answer given to the next permission request.
func (f *Fake) AnswerWith(p Permission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answer = p
}

// SetPermission changes the permission as if the user edited it outside the app.
func (f *Fake) SetPermission(p Permission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permission = p
}

func (f *Fake) PermissionState() Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission
}

func (f *Fake) RequestPermission(context.Context) (Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests++
	if f.permission == PermissionUnset {
		f.permission = f.answer
	}
	return f.permission, nil
}

func (f *Fake) Emit(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, n)
}

// Emitted returns a copy of everything emitted so far.
func (f *Fake) Emitted() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.emitted...)
}

// Requests returns how many times permission was requested.
func (f *Fake) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}
