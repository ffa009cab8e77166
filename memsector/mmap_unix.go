//go:build unix

package memsector

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/arloliu/mws/errs"
	"github.com/arloliu/mws/section"
)

func mapFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open arena: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stat arena: %w", err)
	}
	size := st.Size()
	if size < section.HeaderSize || size > MaxCapacity {
		return nil, nil, fmt.Errorf("%w: arena file has %d bytes", errs.ErrInvalidHeaderSize, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap arena: %w", err)
	}
	// Queries jump between distant nodes.
	_ = unix.Madvise(data, unix.MADV_RANDOM)

	return data, func() error { return unix.Munmap(data) }, nil
}
