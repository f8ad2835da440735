package vector

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperjump/semprompt/pkg/utils"
)

func benchVectors(n, dim int) [][]float32 {
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32((i*31+j*17)%97) - 48
		}
		utils.NormalizeL2(v)
		vecs[i] = v
	}
	return vecs
}

func BenchmarkIndexSearch(b *testing.B) {
	for _, n := range []int{1000, 10000} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			idx, err := Open("", 384, 0)
			if err != nil {
				b.Fatal(err)
			}
			defer idx.Close()
			for i, v := range benchVectors(n, 384) {
				if err := idx.Add(fmt.Sprintf("id-%d", i), v); err != nil {
					b.Fatal(err)
				}
			}
			query := benchVectors(1, 384)[0]
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = idx.Search(query, 10)
			}
		})
	}
}

func BenchmarkIndexFlush(b *testing.B) {
	for _, codec := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		b.Run(string(codec), func(b *testing.B) {
			idx, err := Open(filepath.Join(b.TempDir(), "bench.spvx"), 384, 0, WithCompression(codec))
			if err != nil {
				b.Fatal(err)
			}
			defer idx.Close()
			for i, v := range benchVectors(5000, 384) {
				if err := idx.Add(fmt.Sprintf("id-%d", i), v); err != nil {
					b.Fatal(err)
				}
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := idx.Flush(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
