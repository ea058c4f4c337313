// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package sqlite

import (
	"encoding/binary"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// encodeEmbedding packs an embedding in sqlite-vec's float32 blob format.
// Empty embeddings are stored as NULL.
func encodeEmbedding(v []float32) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	blob, err := sqlite_vec.SerializeFloat32(v)
	if err != nil {
		return nil, sqerr.Errorf(sqerr.CodeStoreDatabaseFailure, "serializing embedding: %w", err)
	}
	return blob, nil
}

// decodeEmbedding is the inverse of encodeEmbedding.
func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob)%4 != 0 {
		return nil, sqerr.Errorf(sqerr.CodeStoreDatabaseFailure, "embedding blob has %d bytes, not a multiple of 4", len(blob))
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}
