package proto

import (
	"encoding"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/branchlight/internal/dynconfig"
	"github.com/coreman2200/branchlight/internal/schema"
)

func TestSyncLayout(t *testing.T) {
	b, err := Sync{TimeMS: 0x01020304, Frame: 7, AnimCode: AnimCode(schema.AnimChase)}.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x04, 0x03, 0x02, 0x01, 7, 0, 0, 0, 3, 0, 0}, b)
}

func TestRoundTrip(t *testing.T) {
	msgs := []encoding.BinaryMarshaler{
		Req{},
		Sync{TimeMS: 123456, Frame: 99, AnimCode: 6},
		Brightness{Percent: 42},
		Ack{Frame: 0xDEADBEEF},
	}
	sizes := []int{ReqSize, SyncSize, BrightnessSize, AckSize}
	for i, m := range msgs {
		b, err := m.MarshalBinary()
		require.NoError(t, err)
		assert.Len(t, b, sizes[i])
		got, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}

func TestDecodeConfig(t *testing.T) {
	raw := dynconfig.Marshal(dynconfig.Packet{Role: dynconfig.Follower, Anim: schema.AnimPulse})
	got, err := Decode(raw)
	require.NoError(t, err)
	p, ok := got.(dynconfig.Packet)
	require.True(t, ok)
	assert.Equal(t, dynconfig.Follower, p.Role)

	_, err = Decode(raw[:2])
	assert.ErrorIs(t, err, dynconfig.ErrShortPacket)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = Decode([]byte{0x02, 1, 2})
	assert.ErrorIs(t, err, ErrShort)
	_, err = Decode([]byte{0x04})
	assert.ErrorIs(t, err, ErrShort)
	_, err = Decode([]byte{0x7E})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestBrightnessPercent(t *testing.T) {
	assert.Equal(t, uint8(0), BrightnessPercent(-1))
	assert.Equal(t, uint8(100), BrightnessPercent(3))
	assert.Equal(t, uint8(50), BrightnessPercent(0.5))
	assert.Equal(t, uint8(33), BrightnessPercent(0.333))
	assert.Equal(t, "cfg2", TypeConfig.String())
}
