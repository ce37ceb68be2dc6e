/*
Package chat implements the live transport of the chat core.

The Registry maps each user to their session of record and tracks which
connections subscribe to which logical channels. The Fanout pushes a persisted
message to every live destination exactly once. The Hub owns both for the
lifetime of the process and runs the websocket Client pumps.

Everything here is process-local: a second server instance would not see these
sessions.
*/
package chat

import "sync"

// Handle is a live connection the Registry can route to.
type Handle interface {
	// UserID returns the authenticated user behind the connection.
	UserID() string

	// Deliver queues a frame without blocking and reports whether it was accepted.
	Deliver(frame []byte) bool
}

// Registry is the in-memory session and subscription table. All methods are safe for
// concurrent use, and each one applies its change under a single lock.
type Registry struct {
	mu sync.RWMutex

	// sessions maps user id to the latest registered handle.
	sessions map[string]Handle

	// channels maps a logical channel to its subscribed handles.
	channels map[string]map[Handle]struct{}

	// subscriptions is the reverse index of channels, used on disconnect.
	subscriptions map[Handle]map[string]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:      make(map[string]Handle),
		channels:      make(map[string]map[Handle]struct{}),
		subscriptions: make(map[Handle]map[string]struct{}),
	}
}

// Register makes h the session of record for its user. The previously registered handle,
// if any, is returned so the caller can decide what to do with it. The registry itself
// never closes it.
func (r *Registry) Register(h Handle) (previous Handle, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := h.UserID()
	previous, replaced = r.sessions[userID]
	if replaced && previous == h {
		return nil, false
	}
	r.sessions[userID] = h
	return previous, replaced
}

// Unregister removes the user's mapping only if it still points at h, so a replaced
// session disconnecting late cannot evict its successor.
func (r *Registry) Unregister(userID string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked(userID, h)
}

func (r *Registry) unregisterLocked(userID string, h Handle) bool {
	if current, ok := r.sessions[userID]; ok && current == h {
		delete(r.sessions, userID)
		return true
	}
	return false
}

// Lookup returns the session of record for userID.
func (r *Registry) Lookup(userID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.sessions[userID]
	return h, ok
}

// Subscribe adds channel to the set of channels h receives broadcasts for.
func (r *Registry) Subscribe(h Handle, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.channels[channel]
	if !ok {
		members = make(map[Handle]struct{})
		r.channels[channel] = members
	}
	members[h] = struct{}{}

	subs, ok := r.subscriptions[h]
	if !ok {
		subs = make(map[string]struct{})
		r.subscriptions[h] = subs
	}
	subs[channel] = struct{}{}
}

// isSubscribed reports whether h subscribes to channel.
func (r *Registry) isSubscribed(h Handle, channel string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.channels[channel][h]
	return ok
}

// Disconnect unregisters h (when it is still the session of record) and drops all of
// its subscriptions. It reports whether the session mapping was removed.
func (r *Registry) Disconnect(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for channel := range r.subscriptions[h] {
		members := r.channels[channel]
		delete(members, h)
		if len(members) == 0 {
			delete(r.channels, channel)
		}
	}
	delete(r.subscriptions, h)

	return r.unregisterLocked(h.UserID(), h)
}

// Route is the set of destinations for one publish.
type Route struct {
	// Subscribers are the channel members other than the origin.
	Subscribers []Handle

	// Direct is the recipient's session when it must be reached outside the channel.
	Direct Handle

	// DirectSkip explains why Direct is nil when a recipient was requested.
	DirectSkip string
}

// Direct delivery skip reasons.
const (
	SkipOffline    = "offline"
	SkipSubscribed = "subscribed"
	SkipOrigin     = "origin"
	SkipLookup     = "lookup_error"
)

// Route computes the destinations for a message on channel from origin. When recipientID
// is set, the recipient's session is added as a direct destination unless it already
// subscribes to channel or is the origin. The whole computation reads one consistent
// snapshot, so a subscription racing with it cannot produce a duplicate or a miss.
func (r *Registry) Route(channel string, origin Handle, recipientID string) Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var route Route
	members := r.channels[channel]
	for h := range members {
		if h != origin {
			route.Subscribers = append(route.Subscribers, h)
		}
	}

	if recipientID == "" {
		return route
	}

	h, ok := r.sessions[recipientID]
	switch {
	case !ok:
		route.DirectSkip = SkipOffline
	case origin != nil && h == origin:
		route.DirectSkip = SkipOrigin
	default:
		if _, subscribed := members[h]; subscribed {
			route.DirectSkip = SkipSubscribed
		} else {
			route.Direct = h
		}
	}
	return route
}

// Sessions returns the number of registered users.
func (r *Registry) Sessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
