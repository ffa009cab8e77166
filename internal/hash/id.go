package hash

import (
	"github.com/arloliu/mws/token"
	"github.com/cespare/xxhash/v2"
)

// ID computes the xxHash64 of the given string.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}

// Formula computes the xxHash64 of the little-endian token sequence of f.
func Formula(f token.Formula) uint64 {
	var buf [4]byte
	d := xxhash.New()
	for _, t := range f {
		v := t.Uint32()
		buf[0], buf[1], buf[2], buf[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
		_, _ = d.Write(buf[:])
	}

	return d.Sum64()
}
