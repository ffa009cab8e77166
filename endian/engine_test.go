package endian

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestCheckEndianness(t *testing.T) {
	var probe uint16 = 0x0102
	first := (*[2]byte)(unsafe.Pointer(&probe))[0]

	switch first {
	case 0x01:
		require.Equal(t, binary.BigEndian, CheckEndianness())
		require.False(t, IsNativeLittleEndian())
	case 0x02:
		require.Equal(t, binary.LittleEndian, CheckEndianness())
		require.True(t, IsNativeLittleEndian())
	default:
		require.Failf(t, "unexpected byte value", "got: %v", first)
	}
}

func TestLittleEndianEngine(t *testing.T) {
	engine := GetLittleEndianEngine()

	t.Run("append and read back", func(t *testing.T) {
		buf := engine.AppendUint32(nil, 0x88CAFE88)
		require.Equal(t, []byte{0x88, 0xFE, 0xCA, 0x88}, buf)
		require.Equal(t, uint32(0x88CAFE88), engine.Uint32(buf))
	})

	t.Run("signed offsets survive the unsigned round trip", func(t *testing.T) {
		buf := make([]byte, 4)
		off := int32(-8)
		engine.PutUint32(buf, uint32(off)) //nolint:gosec
		require.Equal(t, off, int32(engine.Uint32(buf))) //nolint:gosec
	})
}

func TestBigEndianEngine_KeyOrder(t *testing.T) {
	engine := GetBigEndianEngine()

	small := engine.AppendUint32([]byte{'f'}, 255)
	large := engine.AppendUint32([]byte{'f'}, 256)
	require.Equal(t, -1, bytes.Compare(small, large))
}
