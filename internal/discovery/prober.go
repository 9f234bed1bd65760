package discovery

import (
	"errors"
	"fmt"
	"net/netip"

	"go.uber.org/zap"

	"github.com/muurk/lanprobe/internal/logging"
	"github.com/muurk/lanprobe/internal/protocol"
)

// DefaultMaxStale is how many foreign or outdated replies Probe skips before
// giving up.
const DefaultMaxStale = 8

// ErrTooManyStale is returned when Probe keeps receiving replies meant for
// some other query.
var ErrTooManyStale = errors.New("discovery: too many replies for other probes")

// Prober runs one query/announcement exchange over an Endpoint.
type Prober struct {
	Endpoint *Endpoint

	// Identity sent in every Query
	Component protocol.ComponentType
	UID       int32
	Username  string

	// Port the query is broadcast to (0: DefaultBroadcastPort)
	Port uint16

	// MaxStale bounds the replies skipped because they answer another probe
	// or fail to decode (default: 8)
	MaxStale int
}

// Result is a matched reply.
type Result struct {
	Query        *protocol.Query
	Announcement *protocol.Announcement
	From         netip.AddrPort
	// Skipped counts replies that were discarded before this one
	Skipped int
}

// NewProber returns a Prober that identifies itself as component.
func NewProber(ep *Endpoint, component protocol.ComponentType, uid int32, username string) *Prober {
	return &Prober{
		Endpoint:  ep,
		Component: component,
		UID:       uid,
		Username:  username,
		MaxStale:  DefaultMaxStale,
	}
}

// Probe broadcasts a fresh Query and waits for the Announcement that echoes
// its probe id. Replies to earlier queries, and datagrams that are not
// announcements at all, are logged and skipped.
//
// Errors from the endpoint are returned unchanged, so IsFatal applies.
func (p *Prober) Probe() (*Result, error) {
	ep := p.Endpoint
	q := protocol.NewQuery(p.Component, p.UID, p.Username, ep.LocalAddr().Port())

	if err := ep.Compose(q); err != nil {
		return nil, err
	}
	if err := ep.Broadcast(p.Port); err != nil {
		return nil, err
	}
	logging.Info("Discovery query broadcast",
		zap.Stringer("probe_id", q.ProbeID),
		zap.Stringer("dest", ep.BroadcastAddr()))

	maxStale := p.MaxStale
	if maxStale <= 0 {
		maxStale = DefaultMaxStale
	}

	for skipped := 0; skipped <= maxStale; skipped++ {
		var (
			ann  protocol.Announcement
			from netip.AddrPort
		)
		err := ep.ReceiveReply(&ann, &from)

		var de *DecodeError
		switch {
		case errors.As(err, &de):
			logging.Debug("Skipping undecodable datagram", zap.Stringer("from", de.From), zap.Error(de.Err))
			continue
		case err != nil:
			return nil, err
		case ann.ProbeID != q.ProbeID:
			logging.Debug("Skipping reply to another probe",
				zap.Stringer("from", from),
				zap.Stringer("probe_id", ann.ProbeID))
			continue
		}

		return &Result{Query: q, Announcement: &ann, From: from, Skipped: skipped}, nil
	}

	return nil, fmt.Errorf("%w: skipped %d", ErrTooManyStale, maxStale+1)
}
