package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	errStringTooLong = errors.New("protocol: string exceeds 64KB limit")
	errPayloadShort  = errors.New("protocol: payload too short")
	errExtraBytes    = errors.New("protocol: payload has trailing data")
	errUnknownType   = errors.New("protocol: unknown message type")
)

// Vec3 mirrors dock.Vec3 so the wire format does not depend on the core package.
type Vec3 [3]float32

// Message is implemented by every trace record payload.
type Message interface {
	Type() MessageType
}

// Frame advances the simulated world by one tick.
type Frame struct {
	Delta   float64
	Elapsed float64
}

// SpawnPanel creates a panel item with a toplevel of the given pixel size.
type SpawnPanel struct {
	PanelID  string
	Width    uint32
	Height   uint32
	Position Vec3
}

// SpawnAcceptor creates an acceptor whose field is an axis-aligned box.
type SpawnAcceptor struct {
	AcceptorID  string
	Label       string
	Center      Vec3
	HalfExtents Vec3
}

// RemoveAcceptor withdraws an acceptor.
type RemoveAcceptor struct {
	AcceptorID string
}

// Grab begins a grab on a panel.
type Grab struct {
	PanelID string
}

// Move displaces a grabbed panel.
type Move struct {
	PanelID string
	Delta   Vec3
}

// Drop ends a grab, optionally throwing the panel with Velocity.
type Drop struct {
	PanelID  string
	Velocity Vec3
}

// Release asks the acceptor holding a panel to let it go.
type Release struct {
	PanelID string
}

// Resize changes a panel's toplevel size.
type Resize struct {
	PanelID string
	Width   uint32
	Height  uint32
}

// ClosePanel destroys a panel item.
type ClosePanel struct {
	PanelID string
}

// AcceptorFault toggles injected distance query failures for an acceptor.
type AcceptorFault struct {
	AcceptorID string
	Failing    bool
}

func (Frame) Type() MessageType          { return MsgFrame }
func (SpawnPanel) Type() MessageType     { return MsgSpawnPanel }
func (SpawnAcceptor) Type() MessageType  { return MsgSpawnAcceptor }
func (RemoveAcceptor) Type() MessageType { return MsgRemoveAcceptor }
func (Grab) Type() MessageType           { return MsgGrab }
func (Move) Type() MessageType           { return MsgMove }
func (Drop) Type() MessageType           { return MsgDrop }
func (Release) Type() MessageType        { return MsgRelease }
func (Resize) Type() MessageType         { return MsgResize }
func (ClosePanel) Type() MessageType     { return MsgClosePanel }
func (AcceptorFault) Type() MessageType  { return MsgAcceptorFault }

// Encode serialises msg into a payload for WriteMessage.
func Encode(msg Message) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 64))
	var err error
	switch m := msg.(type) {
	case Frame:
		writeFloat64(buf, m.Delta)
		writeFloat64(buf, m.Elapsed)
	case SpawnPanel:
		err = encodeString(buf, m.PanelID)
		writeUint32(buf, m.Width)
		writeUint32(buf, m.Height)
		writeVec3(buf, m.Position)
	case SpawnAcceptor:
		if err = encodeString(buf, m.AcceptorID); err == nil {
			err = encodeString(buf, m.Label)
		}
		writeVec3(buf, m.Center)
		writeVec3(buf, m.HalfExtents)
	case RemoveAcceptor:
		err = encodeString(buf, m.AcceptorID)
	case Grab:
		err = encodeString(buf, m.PanelID)
	case Move:
		err = encodeString(buf, m.PanelID)
		writeVec3(buf, m.Delta)
	case Drop:
		err = encodeString(buf, m.PanelID)
		writeVec3(buf, m.Velocity)
	case Release:
		err = encodeString(buf, m.PanelID)
	case Resize:
		err = encodeString(buf, m.PanelID)
		writeUint32(buf, m.Width)
		writeUint32(buf, m.Height)
	case ClosePanel:
		err = encodeString(buf, m.PanelID)
	case AcceptorFault:
		err = encodeString(buf, m.AcceptorID)
		if m.Failing {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	default:
		return nil, fmt.Errorf("%w: %T", errUnknownType, msg)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a payload of type t.
func Decode(t MessageType, b []byte) (Message, error) {
	d := decoder{b: b}
	var msg Message
	switch t {
	case MsgFrame:
		msg = Frame{Delta: d.float64(), Elapsed: d.float64()}
	case MsgSpawnPanel:
		msg = SpawnPanel{PanelID: d.string(), Width: d.uint32(), Height: d.uint32(), Position: d.vec3()}
	case MsgSpawnAcceptor:
		msg = SpawnAcceptor{AcceptorID: d.string(), Label: d.string(), Center: d.vec3(), HalfExtents: d.vec3()}
	case MsgRemoveAcceptor:
		msg = RemoveAcceptor{AcceptorID: d.string()}
	case MsgGrab:
		msg = Grab{PanelID: d.string()}
	case MsgMove:
		msg = Move{PanelID: d.string(), Delta: d.vec3()}
	case MsgDrop:
		msg = Drop{PanelID: d.string(), Velocity: d.vec3()}
	case MsgRelease:
		msg = Release{PanelID: d.string()}
	case MsgResize:
		msg = Resize{PanelID: d.string(), Width: d.uint32(), Height: d.uint32()}
	case MsgClosePanel:
		msg = ClosePanel{PanelID: d.string()}
	case MsgAcceptorFault:
		msg = AcceptorFault{AcceptorID: d.string(), Failing: d.byte() != 0}
	default:
		return nil, fmt.Errorf("%w: %d", errUnknownType, t)
	}
	if d.err != nil {
		return nil, d.err
	}
	if len(d.b) != 0 {
		return nil, errExtraBytes
	}
	return msg, nil
}

func encodeString(buf *bytes.Buffer, value string) error {
	if len(value) > 0xFFFF {
		return errStringTooLong
	}
	writeUint16(buf, uint16(len(value)))
	buf.WriteString(value)
	return nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeFloat64(buf *bytes.Buffer, v float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	buf.Write(tmp[:])
}

func writeVec3(buf *bytes.Buffer, v Vec3) {
	for _, c := range v {
		writeUint32(buf, math.Float32bits(c))
	}
}

// decoder consumes a payload front to back and remembers the first error.
type decoder struct {
	b   []byte
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.b) < n {
		d.err = errPayloadShort
		return nil
	}
	out := d.b[:n]
	d.b = d.b[n:]
	return out
}

func (d *decoder) byte() byte {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) uint32() uint32 {
	if b := d.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) float64() float64 {
	if b := d.take(8); b != nil {
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

func (d *decoder) vec3() Vec3 {
	var v Vec3
	for i := range v {
		v[i] = math.Float32frombits(d.uint32())
	}
	return v
}

func (d *decoder) string() string {
	b := d.take(2)
	if b == nil {
		return ""
	}
	n := int(binary.LittleEndian.Uint16(b))
	if s := d.take(n); s != nil {
		return string(s)
	}
	return ""
}
