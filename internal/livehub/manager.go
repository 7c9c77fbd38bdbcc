// Package livehub delivers room events to the two audiences of every livestream and
// owns the WebSocket connections of hosts and viewers.
package livehub

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"livesignal/backend/internal/config"
	"livesignal/backend/internal/models"

	"go.uber.org/zap"
)

// HostGroup is the audience holding the host connection of a room.
func HostGroup(roomGUID string) string { return roomGUID + config.HostGroupSuffix }

// ListenerGroup is the audience holding the viewers of a room.
func ListenerGroup(roomGUID string) string { return roomGUID + config.ListenerGroupSuffix }

// Mirror receives a copy of every group event, e.g. a Redis channel.
type Mirror interface {
	PublishRoomEvent(group string, payload []byte) error
}

type mirrored struct {
	group   string
	payload []byte
}

// Manager keeps named groups of clients. Delivery is fire and forget.
type Manager struct {
	mu     sync.RWMutex
	groups map[string]map[string]Client   // group -> conn id -> client
	member map[string]map[string]struct{} // conn id -> groups

	mirror      Mirror
	mirrorQueue chan mirrored
	log         *zap.Logger
}

// NewManager builds a Manager. mirror may be nil; otherwise Run must be started to
// publish the mirrored events.
func NewManager(mirror Mirror, log *zap.Logger) *Manager {
	m := &Manager{
		groups: make(map[string]map[string]Client),
		member: make(map[string]map[string]struct{}),
		mirror: mirror,
		log:    log.Named("livehub"),
	}
	if mirror != nil {
		m.mirrorQueue = make(chan mirrored, config.MirrorQueueSize)
	}
	return m
}

// Run publishes queued mirror events until ctx is done, then publishes what is left.
func (m *Manager) Run(ctx context.Context) {
	if m.mirror == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case ev := <-m.mirrorQueue:
			m.publish(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-m.mirrorQueue:
					m.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) publish(ev mirrored) {
	if err := m.mirror.PublishRoomEvent(ev.group, ev.payload); err != nil {
		m.log.Warn("failed to mirror event", zap.String("group", ev.group), zap.Error(err))
	}
}

func (m *Manager) Join(group string, c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[group]
	if !ok {
		g = make(map[string]Client)
		m.groups[group] = g
	}
	g[c.ID()] = c

	mg, ok := m.member[c.ID()]
	if !ok {
		mg = make(map[string]struct{})
		m.member[c.ID()] = mg
	}
	mg[group] = struct{}{}
}

func (m *Manager) Leave(group, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leave(group, connID)
}

// LeaveAll removes connID from every group it joined.
func (m *Manager) LeaveAll(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for group := range m.member[connID] {
		m.leave(group, connID)
	}
}

// Drop removes a whole group. Its clients stay connected.
func (m *Manager) Drop(group string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for connID := range m.groups[group] {
		if mg, ok := m.member[connID]; ok {
			delete(mg, group)
			if len(mg) == 0 {
				delete(m.member, connID)
			}
		}
	}
	delete(m.groups, group)
}

// Send delivers ev to every client of the group and returns how many accepted it.
func (m *Manager) Send(group string, ev models.Event) int {
	m.mu.RLock()
	targets := make([]Client, 0, len(m.groups[group]))
	for _, c := range m.groups[group] {
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Send(ev) {
			delivered++
		} else {
			m.log.Debug("event dropped", zap.String("group", group), zap.String("conn_id", c.ID()), zap.String("event", ev.Name))
		}
	}

	if m.mirror != nil {
		m.enqueueMirror(group, ev)
	}
	return delivered
}

// enqueueMirror never blocks; a full queue drops the copy.
func (m *Manager) enqueueMirror(group string, ev models.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		m.log.Warn("failed to encode mirrored event", zap.String("event", ev.Name), zap.Error(err))
		return
	}
	select {
	case m.mirrorQueue <- mirrored{group: group, payload: payload}:
	default:
		m.log.Warn("mirror queue full, event not mirrored", zap.String("group", group), zap.String("event", ev.Name))
	}
}

// Members returns the sorted connection ids of a group.
func (m *Manager) Members(group string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.groups[group]))
	for id := range m.groups[group] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) leave(group, connID string) {
	if g, ok := m.groups[group]; ok {
		delete(g, connID)
		if len(g) == 0 {
			delete(m.groups, group)
		}
	}
	if mg, ok := m.member[connID]; ok {
		delete(mg, group)
		if len(mg) == 0 {
			delete(m.member, connID)
		}
	}
}
