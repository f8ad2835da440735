package vector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Snapshot layout (little endian):
//
//	magic "SPVX" | version u16 | flags u16 | dimension u32 | count u64 | crc32 u32 | body
//
// body is count × (idLen u32 | id bytes | dimension × float32 bits), compressed with zstd
// when flagZstd is set or with the lz4 frame format when flagLZ4 is set. The checksum covers
// the uncompressed body.
const (
	snapshotVersion uint16 = 1
	flagZstd        uint16 = 1 << 0
	flagLZ4         uint16 = 1 << 1
	maxIDLen               = 1 << 16
)

// Compression selects the codec for the snapshot body.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseCompression accepts "", "none", "zstd" and "lz4".
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd, CompressionLZ4:
		return Compression(s), nil
	}
	return "", fmt.Errorf("unknown snapshot compression %q", s)
}

func (c Compression) flag() uint16 {
	switch c {
	case CompressionZstd:
		return flagZstd
	case CompressionLZ4:
		return flagLZ4
	}
	return 0
}

var snapshotMagic = [4]byte{'S', 'P', 'V', 'X'}

type snapshotHeader struct {
	Magic     [4]byte
	Version   uint16
	Flags     uint16
	Dimension uint32
	Count     uint64
	Checksum  uint32
}

// encodeSnapshot writes ids and vectors to w.
func encodeSnapshot(w io.Writer, dimension int, ids []string, vectors [][]float32, codec Compression) error {
	var body bytes.Buffer
	body.Grow(len(ids) * (8 + dimension*4))
	var scratch [4]byte
	for i, id := range ids {
		binary.LittleEndian.PutUint32(scratch[:], uint32(len(id)))
		body.Write(scratch[:])
		body.WriteString(id)
		body.Write(float32SliceToBytes(vectors[i]))
	}

	hdr := snapshotHeader{
		Magic:     snapshotMagic,
		Version:   snapshotVersion,
		Flags:     codec.flag(),
		Dimension: uint32(dimension),
		Count:     uint64(len(ids)),
		Checksum:  crc32.ChecksumIEEE(body.Bytes()),
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	var enc io.WriteCloser
	switch codec {
	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("create zstd writer: %w", err)
		}
		enc = zw
	case CompressionLZ4:
		enc = lz4.NewWriter(w)
	default:
		if _, err := w.Write(body.Bytes()); err != nil {
			return fmt.Errorf("write body: %w", err)
		}
		return nil
	}
	if _, err := enc.Write(body.Bytes()); err != nil {
		_ = enc.Close()
		return fmt.Errorf("write %s body: %w", codec, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close %s writer: %w", codec, err)
	}
	return nil
}

// decodeSnapshot reads a snapshot written for dimension. A dimension disagreement returns
// *DimensionMismatchError; every other decoding failure wraps errCorruptSnapshot.
func decodeSnapshot(r io.Reader, dimension int) ([]string, [][]float32, error) {
	var hdr snapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, nil, fmt.Errorf("%w: read header: %v", errCorruptSnapshot, err)
	}
	if hdr.Magic != snapshotMagic {
		return nil, nil, fmt.Errorf("%w: bad magic %q", errCorruptSnapshot, hdr.Magic[:])
	}
	if hdr.Version != snapshotVersion {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", errCorruptSnapshot, hdr.Version)
	}
	if int(hdr.Dimension) != dimension {
		return nil, nil, &DimensionMismatchError{Snapshot: int(hdr.Dimension), Expected: dimension}
	}

	var src io.Reader = r
	switch hdr.Flags {
	case 0:
	case flagZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: open zstd body: %v", errCorruptSnapshot, err)
		}
		defer dec.Close()
		src = dec
	case flagLZ4:
		src = lz4.NewReader(r)
	default:
		return nil, nil, fmt.Errorf("%w: unsupported flags %#04x", errCorruptSnapshot, hdr.Flags)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read body: %v", errCorruptSnapshot, err)
	}
	if sum := crc32.ChecksumIEEE(body); sum != hdr.Checksum {
		return nil, nil, fmt.Errorf("%w: checksum mismatch (stored %08x, computed %08x)", errCorruptSnapshot, hdr.Checksum, sum)
	}

	vecBytes := dimension * 4
	// Every entry takes at least 4+vecBytes bytes; reject counts the body cannot hold.
	if hdr.Count > uint64(len(body))/uint64(4+vecBytes) {
		return nil, nil, fmt.Errorf("%w: count %d exceeds body size %d", errCorruptSnapshot, hdr.Count, len(body))
	}
	n := int(hdr.Count)
	ids := make([]string, 0, n)
	vectors := make([][]float32, 0, n)
	seen := make(map[string]struct{}, n)
	br := bytes.NewReader(body)
	var scratch [4]byte
	buf := make([]byte, vecBytes)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(br, scratch[:]); err != nil {
			return nil, nil, fmt.Errorf("%w: entry %d: read id len: %v", errCorruptSnapshot, i, err)
		}
		idLen := binary.LittleEndian.Uint32(scratch[:])
		if idLen > maxIDLen {
			return nil, nil, fmt.Errorf("%w: entry %d: id length %d", errCorruptSnapshot, i, idLen)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(br, idBytes); err != nil {
			return nil, nil, fmt.Errorf("%w: entry %d: read id: %v", errCorruptSnapshot, i, err)
		}
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, nil, fmt.Errorf("%w: entry %d: read vector: %v", errCorruptSnapshot, i, err)
		}
		id := string(idBytes)
		if _, dup := seen[id]; dup {
			return nil, nil, fmt.Errorf("%w: entry %d: duplicate id %q", errCorruptSnapshot, i, id)
		}
		vec := bytesToFloat32Slice(buf)
		if !allFinite(vec) {
			return nil, nil, fmt.Errorf("%w: entry %d: non-finite component", errCorruptSnapshot, i)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		vectors = append(vectors, vec)
	}
	if br.Len() != 0 {
		return nil, nil, fmt.Errorf("%w: %d trailing bytes", errCorruptSnapshot, br.Len())
	}
	return ids, vectors, nil
}

// writeFileAtomic writes to a temp file next to path and renames it into place, so a crash
// mid-write leaves the previous file intact.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		cleanup()
		return err
	}
	if err := bw.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("flush temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	syncDir(dir)
	return nil
}

// syncDir makes the rename durable where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
