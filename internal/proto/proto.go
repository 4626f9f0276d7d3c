// Package proto defines the small fixed-size messages exchanged between the
// leader and follower alongside dynamic configuration packets.
package proto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/coreman2200/branchlight/internal/dynconfig"
)

type Type byte

const (
	TypeReq        Type = 0x01
	TypeSync       Type = 0x02
	TypeBrightness Type = 0x03
	TypeAck        Type = 0x04
	TypeConfig     Type = Type(dynconfig.MsgType)
)

func (t Type) String() string {
	switch t {
	case TypeReq:
		return "req"
	case TypeSync:
		return "sync"
	case TypeBrightness:
		return "brightness"
	case TypeAck:
		return "ack"
	case TypeConfig:
		return "cfg2"
	default:
		return fmt.Sprintf("type(0x%02x)", byte(t))
	}
}

const (
	ReqSize        = 1
	SyncSize       = 12
	BrightnessSize = 2
	AckSize        = 5
)

var (
	ErrEmpty       = errors.New("proto: empty message")
	ErrShort       = errors.New("proto: message too short")
	ErrUnknownType = errors.New("proto: unknown message type")
)

// Req asks the leader to resend time and configuration.
type Req struct{}

// Sync carries the leader clock and the animation the follower should run.
type Sync struct {
	TimeMS   uint32 `json:"timeMs"`
	Frame    uint32 `json:"frame"`
	AnimCode uint16 `json:"animCode"`
}

// Brightness sets output brightness in percent.
type Brightness struct {
	Percent uint8 `json:"percent"`
}

// Ack confirms a frame.
type Ack struct {
	Frame uint32 `json:"frame"`
}

func (Req) MarshalBinary() ([]byte, error) { return []byte{byte(TypeReq)}, nil }

func (s Sync) MarshalBinary() ([]byte, error) {
	b := make([]byte, SyncSize)
	b[0] = byte(TypeSync)
	binary.LittleEndian.PutUint32(b[1:], s.TimeMS)
	binary.LittleEndian.PutUint32(b[5:], s.Frame)
	binary.LittleEndian.PutUint16(b[9:], s.AnimCode)
	return b, nil
}

func (m Brightness) MarshalBinary() ([]byte, error) {
	return []byte{byte(TypeBrightness), m.Percent}, nil
}

func (a Ack) MarshalBinary() ([]byte, error) {
	b := make([]byte, AckSize)
	b[0] = byte(TypeAck)
	binary.LittleEndian.PutUint32(b[1:], a.Frame)
	return b, nil
}

// AnimCode is the sync encoding of an animation index.
func AnimCode(index uint8) uint16 { return uint16(index) }

// BrightnessPercent converts a 0..1 level to a clamped percentage.
func BrightnessPercent(level float64) uint8 {
	switch {
	case level <= 0:
		return 0
	case level >= 1:
		return 100
	default:
		return uint8(level*100 + 0.5)
	}
}

// TypeOf returns the tag byte of data.
func TypeOf(data []byte) (Type, error) {
	if len(data) == 0 {
		return 0, ErrEmpty
	}
	return Type(data[0]), nil
}

// Decode parses any known message. The result is one of Req, Sync,
// Brightness, Ack or dynconfig.Packet.
func Decode(data []byte) (any, error) {
	t, err := TypeOf(data)
	if err != nil {
		return nil, err
	}
	need := 0
	switch t {
	case TypeReq:
		need = ReqSize
	case TypeSync:
		need = SyncSize
	case TypeBrightness:
		need = BrightnessSize
	case TypeAck:
		need = AckSize
	case TypeConfig:
		p, err := dynconfig.Decode(data)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownType, byte(t))
	}
	if len(data) < need {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShort, t, need, len(data))
	}
	switch t {
	case TypeReq:
		return Req{}, nil
	case TypeSync:
		return Sync{
			TimeMS:   binary.LittleEndian.Uint32(data[1:]),
			Frame:    binary.LittleEndian.Uint32(data[5:]),
			AnimCode: binary.LittleEndian.Uint16(data[9:]),
		}, nil
	case TypeBrightness:
		return Brightness{Percent: data[1]}, nil
	default:
		return Ack{Frame: binary.LittleEndian.Uint32(data[1:])}, nil
	}
}
