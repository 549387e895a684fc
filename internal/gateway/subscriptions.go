package gateway

import "sync"

// Well-known broadcast channels. Clients may subscribe to any channel the
// server announces; these are the ones the gateway's own producers feed.
const (
	ChannelKnowledgeUpdates   = "knowledge_updates"
	ChannelPerformanceMetrics = "performance_metrics"
	ChannelSystemStatus       = "system_status"
)

// Index maps channel name → set of connection ids, and keeps each
// connection's own subscription set in agreement with it. Both maps
// mutate under one lock so they can never disagree.
//
// Channel entries are created lazily on the first subscriber and deleted
// when the last one leaves; an entry exists iff it has members.
type Index struct {
	mu       sync.Mutex
	channels map[string]map[string]struct{}
	byConn   map[string]map[string]struct{}
}

// NewIndex creates an empty subscription index.
func NewIndex() *Index {
	return &Index{
		channels: make(map[string]map[string]struct{}),
		byConn:   make(map[string]map[string]struct{}),
	}
}

// Subscribe adds the connection to the channel. Subscribing twice is a
// no-op.
func (x *Index) Subscribe(connID, channel string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	members, ok := x.channels[channel]
	if !ok {
		members = make(map[string]struct{})
		x.channels[channel] = members
	}
	members[connID] = struct{}{}

	subs, ok := x.byConn[connID]
	if !ok {
		subs = make(map[string]struct{})
		x.byConn[connID] = subs
	}
	subs[channel] = struct{}{}
}

// Unsubscribe removes the connection from the channel. Unsubscribing from
// a channel never joined is a no-op, not an error.
func (x *Index) Unsubscribe(connID, channel string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(connID, channel)
}

// RemoveAll drops the connection from every channel it belongs to, in
// time proportional to its own subscription count. Called on disconnect.
func (x *Index) RemoveAll(connID string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for channel := range x.byConn[connID] {
		x.removeLocked(connID, channel)
	}
	delete(x.byConn, connID)
}

func (x *Index) removeLocked(connID, channel string) {
	if members, ok := x.channels[channel]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(x.channels, channel)
		}
	}
	if subs, ok := x.byConn[connID]; ok {
		delete(subs, channel)
		if len(subs) == 0 {
			delete(x.byConn, connID)
		}
	}
}

// MembersOf returns a point-in-time copy of the channel's member ids,
// never a live reference, so broadcast iteration is safe against
// concurrent mutation.
func (x *Index) MembersOf(channel string) []string {
	x.mu.Lock()
	defer x.mu.Unlock()

	members := x.channels[channel]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// Subscriptions returns a copy of the channels one connection belongs to.
func (x *Index) Subscriptions(connID string) []string {
	x.mu.Lock()
	defer x.mu.Unlock()

	subs := x.byConn[connID]
	channels := make([]string, 0, len(subs))
	for ch := range subs {
		channels = append(channels, ch)
	}
	return channels
}

// ChannelCount returns the number of channels with at least one member.
func (x *Index) ChannelCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.channels)
}
