// Package endian provides the byte order used by every mws binary layout.
//
// Arena images, dictionary payloads and formula records are always written
// little-endian so that an arena produced on one host can be memory-mapped on
// any other without fix-up. EndianEngine combines binary.ByteOrder with
// binary.AppendByteOrder, which lets encoders append directly to a growing
// buffer:
//
//	engine := endian.GetLittleEndianEngine()
//	buf = engine.AppendUint32(buf, tok.Uint32())
//
// All functions are safe for concurrent use.
package endian

import (
	"encoding/binary"
	"unsafe"
)

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary.
//
// binary.LittleEndian and binary.BigEndian both satisfy it.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// CheckEndianness uses a fixed integer value to determine the host's byte order.
func CheckEndianness() binary.ByteOrder {
	// 0x0100 is 256. For a little-endian system, the LSB (0x00) is first.
	var i uint16 = 0x0100

	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 0x01 {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// IsNativeLittleEndian reports whether the host stores integers little-endian,
// i.e. whether arena words can be read without byte swapping.
func IsNativeLittleEndian() bool {
	return CheckEndianness() == binary.LittleEndian
}

// GetLittleEndianEngine returns the little-endian engine used for all on-disk layouts.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine used for store keys, whose
// byte order must sort like the numbers they encode.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}
