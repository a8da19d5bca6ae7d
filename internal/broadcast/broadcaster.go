// Package broadcast fans domain events out to project and board rooms.
//
// Delivery is best-effort: a connection that is not live at publish time
// never sees the event and is expected to reconcile with its next read.
package broadcast

import (
	"context"
	"log/slog"
	"time"

	"github.com/zulandar/boardsync/internal/logging"
)

// Transport delivers an encoded frame to one connection.
type Transport interface {
	Deliver(connID string, frame []byte) error
}

// Rooms resolves room membership to connection ids.
type Rooms interface {
	ConnectionsInProject(projectID uint) []string
	ConnectionsOnBoard(boardID uint) []string
}

// Sink mirrors project-level messages somewhere outside the realtime
// channel. Mirror must not block.
type Sink interface {
	Mirror(ctx context.Context, projectID uint, message string)
}

// Broadcaster publishes frames to rooms.
type Broadcaster struct {
	rooms     Rooms
	transport Transport
	sinks     []Sink
	log       *slog.Logger
	now       func() time.Time
}

// New returns a Broadcaster. A nil logger uses slog.Default.
func New(rooms Rooms, transport Transport, log *slog.Logger, sinks ...Sink) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{rooms: rooms, transport: transport, sinks: sinks, log: log, now: time.Now}
}

// PublishToProject delivers event to every connection joined to projectID
// except those in exclude. It returns the number of successful deliveries.
func (b *Broadcaster) PublishToProject(ctx context.Context, projectID uint, event string, payload interface{}, exclude ...string) int {
	return b.publish(ctx, b.rooms.ConnectionsInProject(projectID), event, payload, exclude,
		logging.Project(projectID))
}

// PublishToBoard delivers event to every connection scoped to boardID
// except those in exclude.
func (b *Broadcaster) PublishToBoard(ctx context.Context, boardID uint, event string, payload interface{}, exclude ...string) int {
	return b.publish(ctx, b.rooms.ConnectionsOnBoard(boardID), event, payload, exclude,
		logging.Board(boardID))
}

// SendTo delivers event to a single connection.
func (b *Broadcaster) SendTo(ctx context.Context, connID string, event string, payload interface{}) bool {
	return b.publish(ctx, []string{connID}, event, payload, nil, logging.Conn(connID)) == 1
}

// Announcement is one domain change to tell a project and board about.
type Announcement struct {
	ProjectID uint
	BoardID   uint
	Type      string
	Message   string
	Actor     string
	Data      interface{}

	// SourceProjectID and SourceBoardID locate the item before a move that
	// left its board. Rooms already covered by ProjectID and BoardID are
	// not told twice.
	SourceProjectID uint
	SourceBoardID   uint

	// Origin is the originating connection. Move announcements exclude it
	// so the mover's client does not refetch its own optimistic update.
	Origin        string
	ExcludeOrigin bool
}

// Announce publishes a domainEvent to the project room, a boardEvent to the
// board room when BoardID is set, and the same to a distinct source project
// and board. The message is mirrored to every sink once.
func (b *Broadcaster) Announce(ctx context.Context, a Announcement) {
	var exclude []string
	if a.ExcludeOrigin && a.Origin != "" {
		exclude = []string{a.Origin}
	}
	event := BoardEvent{
		Type:      a.Type,
		Message:   a.Message,
		Actor:     a.Actor,
		Data:      a.Data,
		Timestamp: b.now().UTC(),
	}

	b.PublishToProject(ctx, a.ProjectID, EventDomain, a.Message, exclude...)
	if a.SourceProjectID != 0 && a.SourceProjectID != a.ProjectID {
		b.PublishToProject(ctx, a.SourceProjectID, EventDomain, a.Message, exclude...)
	}
	if a.BoardID != 0 {
		b.PublishToBoard(ctx, a.BoardID, EventBoard, event, exclude...)
	}
	if a.SourceBoardID != 0 && a.SourceBoardID != a.BoardID {
		b.PublishToBoard(ctx, a.SourceBoardID, EventBoard, event, exclude...)
	}
	for _, s := range b.sinks {
		s.Mirror(ctx, a.ProjectID, a.Message)
	}
}

func (b *Broadcaster) publish(ctx context.Context, conns []string, event string, payload interface{}, exclude []string, room slog.Attr) int {
	if len(conns) == 0 {
		return 0
	}
	log := logging.FromContext(ctx)
	if log == slog.Default() {
		log = b.log
	}

	frame, err := Encode(event, payload)
	if err != nil {
		log.Error("broadcast encode failed", logging.Event(event), room, logging.Err(err))
		return 0
	}

	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	delivered := 0
	for _, id := range conns {
		if skip[id] {
			continue
		}
		if err := b.transport.Deliver(id, frame); err != nil {
			log.Warn("broadcast delivery failed", logging.Event(event), room, logging.Conn(id), logging.Err(err))
			continue
		}
		delivered++
	}
	log.Debug("broadcast", logging.Event(event), room, slog.Int("delivered", delivered))
	return delivered
}
