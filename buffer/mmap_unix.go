//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package buffer

import (
	"os"

	"golang.org/x/sys/unix"
)

func mmap(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func msync(data []byte) error {
	return unix.Msync(data, unix.MS_SYNC)
}

func munmap(data []byte) error {
	return unix.Munmap(data)
}
