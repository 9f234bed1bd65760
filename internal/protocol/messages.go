package protocol

import (
	"fmt"
	"net/netip"

	"github.com/google/uuid"
)

// Message type constants
const (
	MsgTypeQuery        = 0x01 // Discovery probe, broadcast by a node looking for a peer
	MsgTypeAnnouncement = 0x02 // Reply from a peer, unicast back to the prober
)

func typeName(t byte) string {
	switch t {
	case MsgTypeQuery:
		return "query"
	case MsgTypeAnnouncement:
		return "announcement"
	default:
		return fmt.Sprintf("unknown(0x%02x)", t)
	}
}

// ComponentType identifies the role of a process in the cluster.
type ComponentType uint8

const (
	ComponentUnknown ComponentType = iota
	ComponentMachine
	ComponentLogger
	ComponentDBMgr
	ComponentBaseAppMgr
	ComponentCellAppMgr
	ComponentBaseApp
	ComponentCellApp
	ComponentLoginApp
	ComponentBots
	ComponentConsole
)

var componentNames = map[ComponentType]string{
	ComponentUnknown:    "unknown",
	ComponentMachine:    "machine",
	ComponentLogger:     "logger",
	ComponentDBMgr:      "dbmgr",
	ComponentBaseAppMgr: "baseappmgr",
	ComponentCellAppMgr: "cellappmgr",
	ComponentBaseApp:    "baseapp",
	ComponentCellApp:    "cellapp",
	ComponentLoginApp:   "loginapp",
	ComponentBots:       "bots",
	ComponentConsole:    "console",
}

// String returns the lowercase component name
func (c ComponentType) String() string {
	if name, ok := componentNames[c]; ok {
		return name
	}
	return fmt.Sprintf("component(%d)", uint8(c))
}

// ParseComponentType maps a name such as "machine" back to its type.
func ParseComponentType(name string) (ComponentType, error) {
	for c, n := range componentNames {
		if n == name {
			return c, nil
		}
	}
	return ComponentUnknown, fmt.Errorf("unknown component type %q", name)
}

// Query (type 0x01) - broadcast probe asking "who serves this user?"
//
// Payload Structure:
//
//	[0-15]  probe_id        UUID echoed back in the Announcement
//	[16]    component_type  Role of the sender
//	[17-20] uid             User id the sender runs as (little-endian int32)
//	[21+]   username        uint16 length + bytes
//	[N-N+1] reply_port      Port the sender listens on for the reply
type Query struct {
	ProbeID       uuid.UUID
	ComponentType ComponentType
	UID           int32
	Username      string
	ReplyPort     uint16
}

// NewQuery returns a Query with a fresh probe id.
func NewQuery(component ComponentType, uid int32, username string, replyPort uint16) *Query {
	return &Query{
		ProbeID:       uuid.New(),
		ComponentType: component,
		UID:           uid,
		Username:      username,
		ReplyPort:     replyPort,
	}
}

func (m *Query) Type() byte { return MsgTypeQuery }

func (m *Query) String() string {
	return fmt.Sprintf("Query{probe=%s, component=%s, uid=%d, user=%q, reply_port=%d}",
		m.ProbeID, m.ComponentType, m.UID, m.Username, m.ReplyPort)
}

func (m *Query) WriteBody(p *Packet) error {
	p.WriteRaw(m.ProbeID[:])
	p.WriteUint8(uint8(m.ComponentType))
	p.WriteInt32(m.UID)
	if err := p.WriteString(m.Username); err != nil {
		return fmt.Errorf("username: %w", err)
	}
	p.WriteUint16(m.ReplyPort)
	return nil
}

func (m *Query) ReadBody(p *Packet) error {
	id, err := p.ReadRaw(len(m.ProbeID))
	if err != nil {
		return fmt.Errorf("probe_id: %w", err)
	}
	copy(m.ProbeID[:], id)

	ct, err := p.ReadUint8()
	if err != nil {
		return fmt.Errorf("component_type: %w", err)
	}
	m.ComponentType = ComponentType(ct)

	if m.UID, err = p.ReadInt32(); err != nil {
		return fmt.Errorf("uid: %w", err)
	}
	if m.Username, err = p.ReadString(); err != nil {
		return fmt.Errorf("username: %w", err)
	}
	if m.ReplyPort, err = p.ReadUint16(); err != nil {
		return fmt.Errorf("reply_port: %w", err)
	}
	return nil
}

// Announcement (type 0x02) - a peer's answer to a Query
//
// Payload Structure:
//
//	[0-15]  probe_id        Copied from the Query being answered
//	[16]    component_type  Role of the answering peer
//	[17-24] component_id    Cluster-unique id (little-endian uint64)
//	[25-28] pid             Process id of the peer
//	[29+]   hostname        uint16 length + bytes
//	[N-N+5] addr            IPv4 (4 bytes) + port where the peer serves
type Announcement struct {
	ProbeID       uuid.UUID
	ComponentType ComponentType
	ComponentID   uint64
	PID           uint32
	Hostname      string
	Addr          netip.AddrPort
}

func (m *Announcement) Type() byte { return MsgTypeAnnouncement }

func (m *Announcement) String() string {
	return fmt.Sprintf("Announcement{probe=%s, component=%s, id=%d, pid=%d, host=%q, addr=%s}",
		m.ProbeID, m.ComponentType, m.ComponentID, m.PID, m.Hostname, m.Addr)
}

func (m *Announcement) WriteBody(p *Packet) error {
	p.WriteRaw(m.ProbeID[:])
	p.WriteUint8(uint8(m.ComponentType))
	p.WriteUint64(m.ComponentID)
	p.WriteUint32(m.PID)
	if err := p.WriteString(m.Hostname); err != nil {
		return fmt.Errorf("hostname: %w", err)
	}
	if err := p.WriteAddrPort(m.Addr); err != nil {
		return fmt.Errorf("addr: %w", err)
	}
	return nil
}

func (m *Announcement) ReadBody(p *Packet) error {
	id, err := p.ReadRaw(len(m.ProbeID))
	if err != nil {
		return fmt.Errorf("probe_id: %w", err)
	}
	copy(m.ProbeID[:], id)

	ct, err := p.ReadUint8()
	if err != nil {
		return fmt.Errorf("component_type: %w", err)
	}
	m.ComponentType = ComponentType(ct)

	if m.ComponentID, err = p.ReadUint64(); err != nil {
		return fmt.Errorf("component_id: %w", err)
	}
	if m.PID, err = p.ReadUint32(); err != nil {
		return fmt.Errorf("pid: %w", err)
	}
	if m.Hostname, err = p.ReadString(); err != nil {
		return fmt.Errorf("hostname: %w", err)
	}
	if m.Addr, err = p.ReadAddrPort(); err != nil {
		return fmt.Errorf("addr: %w", err)
	}
	return nil
}
