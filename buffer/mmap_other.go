//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package buffer

import "os"

func mmap(*os.File, int) ([]byte, error) { return nil, ErrUnsupported }

func msync([]byte) error { return ErrUnsupported }

func munmap([]byte) error { return nil }
