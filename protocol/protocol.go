// Copyright © 2025 Orbit contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/protocol.go
// Summary: Framing for recorded docking traces.
// Usage: sim.Recorder writes frames with WriteMessage; sim.Replay reads them back with ReadMessage.
// Notes: Any change to the header layout requires a Version bump.

package protocol

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

const (
	magic      uint32 = 0x4f524201 // "ORB\x01"
	headerSize        = 40

	// MaxPayload bounds a single trace record.
	MaxPayload = 1 << 20
)

// Flag bits for the header Flags byte.
const (
	FlagChecksum uint8 = 0x01
)

// Version is the trace format version implemented by this package.
const Version uint8 = 1

// MessageType enumerates the records a trace can contain.
type MessageType uint8

const (
	MsgFrame MessageType = iota
	MsgSpawnPanel
	MsgSpawnAcceptor
	MsgRemoveAcceptor
	MsgGrab
	MsgMove
	MsgDrop
	MsgRelease
	MsgResize
	MsgClosePanel
	MsgAcceptorFault
)

var messageTypeNames = [...]string{
	MsgFrame:          "frame",
	MsgSpawnPanel:     "spawn-panel",
	MsgSpawnAcceptor:  "spawn-acceptor",
	MsgRemoveAcceptor: "remove-acceptor",
	MsgGrab:           "grab",
	MsgMove:           "move",
	MsgDrop:           "drop",
	MsgRelease:        "release",
	MsgResize:         "resize",
	MsgClosePanel:     "close-panel",
	MsgAcceptorFault:  "acceptor-fault",
}

func (t MessageType) String() string {
	if int(t) < len(messageTypeNames) {
		return messageTypeNames[t]
	}
	return "unknown"
}

// Header describes the fixed portion of every trace record.
type Header struct {
	Version    uint8
	Type       MessageType
	Flags      uint8
	Reserved   uint8
	TraceID    [16]byte
	Sequence   uint64
	PayloadLen uint32
	Checksum   uint32
}

var (
	ErrInvalidMagic     = errors.New("protocol: invalid magic")
	ErrUnsupportedVer   = errors.New("protocol: unsupported version")
	ErrShortPayload     = errors.New("protocol: payload shorter than declared length")
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
	ErrPayloadTooLarge  = errors.New("protocol: payload exceeds limit")
)

// WriteMessage serialises the header and payload to w. The payload slice is
// written as-is; callers retain ownership of the buffer.
func WriteMessage(w io.Writer, hdr Header, payload []byte) error {
	if len(payload) > MaxPayload {
		return ErrPayloadTooLarge
	}
	hdr.PayloadLen = uint32(len(payload))

	buf := make([]byte, headerSize, headerSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:], magic)
	buf[4] = hdr.Version
	buf[5] = byte(hdr.Type)
	buf[6] = hdr.Flags
	buf[7] = hdr.Reserved
	copy(buf[8:24], hdr.TraceID[:])
	binary.LittleEndian.PutUint64(buf[24:32], hdr.Sequence)
	binary.LittleEndian.PutUint32(buf[32:36], hdr.PayloadLen)

	checksum := hdr.Checksum
	if hdr.Flags&FlagChecksum != 0 {
		checksum = sum(buf[4:36], payload)
	}
	binary.LittleEndian.PutUint32(buf[36:40], checksum)

	// One write per record so a truncated trace ends on a record boundary
	// whenever the writer is unbuffered.
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

// ReadMessage reads a header and payload from r. io.EOF is returned unchanged
// when r ends cleanly between records.
func ReadMessage(r io.Reader) (Header, []byte, error) {
	var hdr Header
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return hdr, nil, err
	}

	if binary.LittleEndian.Uint32(buf[0:4]) != magic {
		return hdr, nil, ErrInvalidMagic
	}

	hdr.Version = buf[4]
	hdr.Type = MessageType(buf[5])
	hdr.Flags = buf[6]
	hdr.Reserved = buf[7]
	copy(hdr.TraceID[:], buf[8:24])
	hdr.Sequence = binary.LittleEndian.Uint64(buf[24:32])
	hdr.PayloadLen = binary.LittleEndian.Uint32(buf[32:36])
	hdr.Checksum = binary.LittleEndian.Uint32(buf[36:40])

	if hdr.Version != Version {
		return hdr, nil, ErrUnsupportedVer
	}
	if hdr.PayloadLen > MaxPayload {
		return hdr, nil, ErrPayloadTooLarge
	}

	payload := make([]byte, hdr.PayloadLen)
	if hdr.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return hdr, nil, ErrShortPayload
			}
			return hdr, nil, err
		}
	}

	if hdr.Flags&FlagChecksum != 0 && sum(buf[4:36], payload) != hdr.Checksum {
		return hdr, nil, ErrChecksumMismatch
	}

	return hdr, payload, nil
}

func sum(header, payload []byte) uint32 {
	crc := crc32.NewIEEE()
	_, _ = crc.Write(header)
	if len(payload) > 0 {
		_, _ = crc.Write(payload)
	}
	return crc.Sum32()
}
