package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// chunkSize is the number of bytes sampled at each offset.
	chunkSize = 4 * 1024 * 1024
	// digestLen truncates the hex digest; 128 bits is plenty for
	// change detection on a single host.
	digestLen = 32
)

// Signature is the cheap first-line change detector for a file.
type Signature struct {
	Size    int64 `json:"size"`
	MTimeNS int64 `json:"mtime_ns"`
}

// String renders the signature in size-mtime form for logs.
func (s Signature) String() string {
	return fmt.Sprintf("%d-%d", s.Size, s.MTimeNS)
}

// Stat returns the current signature for path.
func Stat(path string) (Signature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Signature{}, err
	}
	return FromInfo(info), nil
}

// FromInfo builds a signature from an already-obtained FileInfo.
func FromInfo(info os.FileInfo) Signature {
	return Signature{Size: info.Size(), MTimeNS: info.ModTime().UnixNano()}
}

// Compute hashes three fixed-size slices (head, middle, tail) together with
// the file size. The read cost is bounded regardless of file length, which is
// what makes re-checking a multi-terabyte library viable. Byte-identical
// content always produces an equal value; the sampled regions make collisions
// with same-size edits unlikely enough for a secondary check.
func Compute(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()
	if size == 0 {
		return strings.Repeat("0", digestLen), nil
	}

	hasher := sha256.New()
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(size))
	hasher.Write(sizeBuf[:])

	offsets := []int64{
		0,
		max(0, size/2-chunkSize/2),
		max(0, size-chunkSize),
	}
	buf := make([]byte, chunkSize)
	for _, offset := range offsets {
		n, err := file.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read chunk at %d: %w", offset, err)
		}
		hasher.Write(buf[:n])
	}

	return hex.EncodeToString(hasher.Sum(nil))[:digestLen], nil
}
