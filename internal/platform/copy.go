package platform

import (
	"fmt"
	"io"
	"os"
	"sync"
)

const copyBufferSize = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, copyBufferSize)
		return &b
	},
}

// CopyFile duplicates src at dst byte for byte, creating or truncating dst.
// The destination inherits the source's permission bits. Returns the number
// of bytes written.
func CopyFile(src, dst string) (int64, error) {
	srcFd, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer srcFd.Close()

	info, err := srcFd.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", src, err)
	}

	dstFd, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}

	written, err := copyContents(srcFd, dstFd)
	if err != nil {
		dstFd.Close()
		return written, fmt.Errorf("copy %s: %w", src, err)
	}

	if err := dstFd.Close(); err != nil {
		return written, fmt.Errorf("close %s: %w", dst, err)
	}
	return written, nil
}

// copyContents drains srcFd into dstFd with a pooled buffer.
func copyContents(srcFd, dstFd *os.File) (int64, error) {
	bufp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bufp)
	return io.CopyBuffer(dstFd, srcFd, *bufp)
}
