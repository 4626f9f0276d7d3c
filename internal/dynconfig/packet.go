// Package dynconfig encodes and decodes the dynamic configuration packet that
// carries sparse parameter changes from the leader to either node.
//
// Layout (little-endian):
//
//	[type][role][animIndex][count] {[id][value 1..4 bytes]}*count
//	[0xFF][globalCount] {[id][value]}*globalCount   (optional)
package dynconfig

import (
	"errors"

	"github.com/coreman2200/branchlight/internal/schema"
)

// MsgType tags a dynamic configuration packet.
const MsgType byte = 0x05

// GlobalMarker introduces the optional global section.
const GlobalMarker byte = 0xFF

// HeaderSize is the fixed header length.
const HeaderSize = 4

// MaxPacketSize matches the radio receive buffer.
const MaxPacketSize = 64

// Role selects which node's parameter set a packet targets.
type Role uint8

const (
	Leader   Role = 0
	Follower Role = 1
)

func (r Role) String() string {
	switch r {
	case Leader:
		return "leader"
	case Follower:
		return "follower"
	default:
		return "unknown"
	}
}

var (
	ErrShortPacket  = errors.New("dynconfig: packet shorter than header")
	ErrWrongType    = errors.New("dynconfig: not a dynamic config packet")
	ErrUnknownParam = errors.New("dynconfig: unknown parameter id")
	ErrTruncated    = errors.New("dynconfig: truncated entry")
)

// ParamValue is one (id, value) pair.
type ParamValue struct {
	ID    uint8   `json:"id"`
	Value float64 `json:"value"`
}

// Packet is a decoded dynamic configuration packet.
type Packet struct {
	Role    Role
	Anim    uint8
	Params  []ParamValue
	Globals []ParamValue
}

// Encode writes a packet into buf and returns the number of bytes written.
// Unknown ids are skipped. Entries that do not fit are dropped whole and the
// count fields reflect only what was written. Returns 0 if the header does not fit.
func Encode(role Role, anim uint8, params, globals []ParamValue, buf []byte) int {
	if len(buf) < HeaderSize {
		return 0
	}
	buf[0] = MsgType
	buf[1] = byte(role)
	buf[2] = anim
	n, written := writeEntries(buf, HeaderSize, params)
	buf[3] = written

	if len(globals) > 0 && len(buf)-n >= 2 {
		buf[n] = GlobalMarker
		countAt := n + 1
		var gw byte
		n, gw = writeEntries(buf, n+2, globals)
		buf[countAt] = gw
	}
	return n
}

// Marshal encodes p into a fresh buffer of at most MaxPacketSize bytes.
func Marshal(p Packet) []byte {
	buf := make([]byte, MaxPacketSize)
	n := Encode(p.Role, p.Anim, p.Params, p.Globals, buf)
	return buf[:n]
}

func writeEntries(buf []byte, off int, entries []ParamValue) (int, byte) {
	var written byte
	for _, pv := range entries {
		if written == 0xFF {
			break
		}
		pd, ok := schema.FindParam(pv.ID)
		if !ok {
			continue
		}
		vb := schema.ValueBytes(pd)
		if len(buf)-off < 1+vb {
			break
		}
		buf[off] = pd.ID
		q := schema.Quantize(pv.Value, pd)
		for b := 0; b < vb; b++ {
			buf[off+1+b] = byte(q >> (8 * b))
		}
		off += 1 + vb
		written++
	}
	return off, written
}

// Decode parses data. Any structural problem rejects the whole packet; the
// caller must not apply partial state.
func Decode(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, ErrShortPacket
	}
	if data[0] != MsgType {
		return Packet{}, ErrWrongType
	}
	p := Packet{Role: Role(data[1]), Anim: data[2]}
	off := HeaderSize
	var err error
	p.Params, off, err = readEntries(data, off, int(data[3]))
	if err != nil {
		return Packet{}, err
	}
	// a marker without a count byte leaves the global section empty
	if off+1 < len(data) && data[off] == GlobalMarker {
		count := int(data[off+1])
		p.Globals, _, err = readEntries(data, off+2, count)
		if err != nil {
			return Packet{}, err
		}
	}
	return p, nil
}

func readEntries(data []byte, off, count int) ([]ParamValue, int, error) {
	out := make([]ParamValue, 0, count)
	for i := 0; i < count; i++ {
		if off >= len(data) {
			return nil, off, ErrTruncated
		}
		id := data[off]
		off++
		pd, ok := schema.FindParam(id)
		if !ok {
			return nil, off, ErrUnknownParam
		}
		vb := schema.ValueBytes(pd)
		if len(data)-off < vb {
			return nil, off, ErrTruncated
		}
		var q uint32
		for b := 0; b < vb; b++ {
			q |= uint32(data[off+b]) << (8 * b)
		}
		off += vb
		out = append(out, ParamValue{ID: id, Value: schema.Dequantize(q, pd)})
	}
	return out, off, nil
}
