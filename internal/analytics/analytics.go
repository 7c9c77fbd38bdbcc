// Package analytics records per-room activity during a livestream and reduces it
// into the settlement written when the stream ends.
//
// Every recorded activity also goes, asynchronously, to a durable log that
// operators page through after the fact.
package analytics

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"livesignal/backend/internal/config"
	"livesignal/backend/internal/models"

	"go.uber.org/zap"
)

type ActivityType int

const (
	Join ActivityType = iota
	Message
	Reaction
)

func (t ActivityType) String() string {
	switch t {
	case Join:
		return "Join"
	case Message:
		return "Message"
	case Reaction:
		return "Reaction"
	}
	return "Unknown"
}

// ErrRoomClosed is returned for rooms that were never opened or are already reduced.
var ErrRoomClosed = errors.New("analytics: room is not accepting activity")

type Activity struct {
	ParticipantID string
	Type          ActivityType
	Timestamp     time.Time
	Payload       string
}

// Counts is the reduced form of a room's activity log.
type Counts struct {
	Join     int
	Message  int
	Reaction int
	Total    int
}

// LogStore is the durable activity log.
type LogStore interface {
	AppendActivityLogs(rows []models.LiveStreamLog) error
	ListActivityLogs(roomID string, offset, limit int) ([]models.LiveStreamLog, int64, error)
}

type Aggregator struct {
	mu    sync.Mutex
	rooms map[string][]Activity

	store      LogStore
	queue      chan models.LiveStreamLog
	flushEvery time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// New builds an Aggregator. store may be nil, in which case nothing is logged durably.
func New(store LogStore, flushEvery time.Duration, log *zap.Logger) *Aggregator {
	if flushEvery <= 0 {
		flushEvery = config.DefaultActivityFlush
	}
	return &Aggregator{
		rooms:      make(map[string][]Activity),
		store:      store,
		queue:      make(chan models.LiveStreamLog, config.ActivityQueueSize),
		flushEvery: flushEvery,
		log:        log.Named("analytics"),
		now:        time.Now,
	}
}

// Open starts accepting activity for room. Opening an open room keeps its log.
func (a *Aggregator) Open(room string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.rooms[room]; !ok {
		a.rooms[room] = make([]Activity, 0, 64)
	}
}

// Record appends one activity. It never waits on the durable log.
func (a *Aggregator) Record(room, participant string, typ ActivityType, payload string) error {
	ts := a.now()

	a.mu.Lock()
	entries, ok := a.rooms[room]
	if !ok {
		a.mu.Unlock()
		return ErrRoomClosed
	}
	a.rooms[room] = append(entries, Activity{
		ParticipantID: participant,
		Type:          typ,
		Timestamp:     ts,
		Payload:       payload,
	})
	a.mu.Unlock()

	if a.store == nil {
		return nil
	}
	select {
	case a.queue <- models.LiveStreamLog{
		UserID:           participant,
		ActivityType:     int(typ),
		Message:          payload,
		LivestreamRoomID: room,
		CreatedAt:        ts,
	}:
	default:
		a.log.Warn("activity queue full, dropping durable log entry",
			zap.String("room_guid", room), zap.Stringer("type", typ))
	}
	return nil
}

// Reduce counts the room's activity by type and closes the room. It succeeds
// exactly once per Open.
func (a *Aggregator) Reduce(room string) (Counts, error) {
	a.mu.Lock()
	entries, ok := a.rooms[room]
	delete(a.rooms, room)
	a.mu.Unlock()

	if !ok {
		return Counts{}, ErrRoomClosed
	}
	var c Counts
	for _, e := range entries {
		switch e.Type {
		case Join:
			c.Join++
		case Message:
			c.Message++
		case Reaction:
			c.Reaction++
		}
	}
	c.Total = c.Join + c.Message + c.Reaction
	return c, nil
}

// Settle combines reduced counts with the completed booking count.
func Settle(room string, c Counts, completedBookings int) *models.LiveStreamDetail {
	return &models.LiveStreamDetail{
		JoinCount:        c.Join,
		MessageCount:     c.Message,
		ReactionCount:    c.Reaction,
		TotalActivities:  c.Join + c.Message + c.Reaction,
		TotalBooking:     completedBookings,
		LivestreamRoomID: room,
	}
}

// Run drains the durable log queue in batches until ctx is done, then flushes what is left.
func (a *Aggregator) Run(ctx context.Context) {
	if a.store == nil {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(a.flushEvery)
	defer ticker.Stop()

	batch := make([]models.LiveStreamLog, 0, config.ActivityFlushBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := a.store.AppendActivityLogs(batch); err != nil {
			a.log.Error("failed to append activity logs", zap.Int("rows", len(batch)), zap.Error(err))
		}
		batch = make([]models.LiveStreamLog, 0, config.ActivityFlushBatch)
	}

	for {
		select {
		case row := <-a.queue:
			batch = append(batch, row)
			if len(batch) >= config.ActivityFlushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case row := <-a.queue:
					batch = append(batch, row)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Entry is one durably logged activity prepared for display.
type Entry struct {
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

type ActivityPage struct {
	Items []Entry `json:"items"`
	Page  int     `json:"page"`
	Size  int     `json:"size"`
	Total int64   `json:"total"`
}

// Page reads one page (1-based) of the durable log. Reaction payloads are
// replaced by their display text.
func (a *Aggregator) Page(room string, page, size int) (*ActivityPage, error) {
	if a.store == nil {
		return &ActivityPage{Items: []Entry{}, Page: 1, Size: size}, nil
	}
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = config.DefaultActivityPageLen
	}
	if size > config.MaxActivityPageLen {
		size = config.MaxActivityPageLen
	}

	rows, total, err := a.store.ListActivityLogs(room, (page-1)*size, size)
	if err != nil {
		return nil, err
	}
	items := make([]Entry, 0, len(rows))
	for _, row := range rows {
		items = append(items, Entry{
			UserID:    row.UserID,
			Type:      ActivityType(row.ActivityType).String(),
			Message:   displayText(ActivityType(row.ActivityType), row.Message),
			CreatedAt: row.CreatedAt,
		})
	}
	return &ActivityPage{Items: items, Page: page, Size: size, Total: total}, nil
}

// ValidReaction reports whether id is a known reaction.
func ValidReaction(id int) bool {
	_, ok := config.ReactionMeanings[id]
	return ok
}

func displayText(typ ActivityType, payload string) string {
	if typ != Reaction {
		return payload
	}
	id, err := strconv.Atoi(payload)
	if err != nil {
		return payload
	}
	if text, ok := config.ReactionMeanings[id]; ok {
		return text
	}
	return payload
}
