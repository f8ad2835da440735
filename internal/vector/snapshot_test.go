package vector

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeForTest(t *testing.T, dim int, ids []string, vecs [][]float32, codec Compression) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, encodeSnapshot(&buf, dim, ids, vecs, codec))
	return buf.Bytes()
}

func TestSnapshot_BitExact(t *testing.T) {
	vecs := [][]float32{
		{float32(math.Copysign(0, -1)), math.SmallestNonzeroFloat32, math.MaxFloat32},
		{0.1, -0.2, 1.0 / 3.0},
	}
	ids := []string{"négatif", ""}
	for _, codec := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		data := encodeForTest(t, 3, ids, vecs, codec)
		gotIDs, gotVecs, err := decodeSnapshot(bytes.NewReader(data), 3)
		require.NoError(t, err)
		assert.Equal(t, ids, gotIDs)
		for i := range vecs {
			for j := range vecs[i] {
				assert.Equal(t, math.Float32bits(vecs[i][j]), math.Float32bits(gotVecs[i][j]))
			}
		}
	}
}

func TestSnapshot_Header(t *testing.T) {
	data := encodeForTest(t, 2, []string{"a"}, [][]float32{{1, 0}}, CompressionZstd)
	require.GreaterOrEqual(t, len(data), 24)
	assert.Equal(t, []byte("SPVX"), data[:4])
	assert.Equal(t, snapshotVersion, binary.LittleEndian.Uint16(data[4:6]))
	assert.Equal(t, flagZstd, binary.LittleEndian.Uint16(data[6:8]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[8:12]))
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(data[12:20]))
}

func TestSnapshot_Empty(t *testing.T) {
	data := encodeForTest(t, 4, nil, nil, CompressionNone)
	ids, vecs, err := decodeSnapshot(bytes.NewReader(data), 4)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, vecs)
}

func TestSnapshot_Corruption(t *testing.T) {
	good := encodeForTest(t, 2, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}, CompressionNone)

	cases := map[string][]byte{
		"empty":     {},
		"bad magic": append([]byte("XXXX"), good[4:]...),
		"truncated": good[:len(good)-3],
		"trailing":  append(append([]byte{}, good...), 0x00),
	}
	flipped := append([]byte{}, good...)
	flipped[len(flipped)-1] ^= 0xFF
	cases["checksum"] = flipped

	badFlags := append([]byte{}, good...)
	binary.LittleEndian.PutUint16(badFlags[6:8], flagZstd|flagLZ4)
	cases["flags"] = badFlags

	badVersion := append([]byte{}, good...)
	binary.LittleEndian.PutUint16(badVersion[4:6], 9)
	cases["version"] = badVersion

	hugeCount := append([]byte{}, good...)
	binary.LittleEndian.PutUint64(hugeCount[12:20], 1<<40)
	cases["count"] = hugeCount

	cases["duplicate"] = encodeForTest(t, 2, []string{"a", "a"}, [][]float32{{1, 0}, {0, 1}}, CompressionNone)
	cases["nan"] = encodeForTest(t, 2, []string{"a"}, [][]float32{{float32(math.NaN()), 0}}, CompressionNone)

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := decodeSnapshot(bytes.NewReader(data), 2)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errCorruptSnapshot), "got %v", err)
		})
	}
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{"": CompressionNone, "none": CompressionNone, "zstd": CompressionZstd, "lz4": CompressionLZ4} {
		got, err := ParseCompression(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCompression("gzip")
	assert.Error(t, err)
}

func TestSnapshot_DimensionMismatch(t *testing.T) {
	data := encodeForTest(t, 2, []string{"a"}, [][]float32{{1, 0}}, CompressionNone)
	_, _, err := decodeSnapshot(bytes.NewReader(data), 5)
	var dimErr *DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.False(t, errors.Is(err, errCorruptSnapshot))
}

func TestWriteFileAtomic_KeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.bin")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0644))

	boom := errors.New("boom")
	err := writeFileAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileAtomic_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snap.bin")
	require.NoError(t, writeFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write([]byte("first"))
		return err
	}))
	require.NoError(t, writeFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write([]byte("second"))
		return err
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}
