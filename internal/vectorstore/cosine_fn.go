package vectorstore

import (
	"database/sql/driver"
	"fmt"
	"sync"

	"modernc.org/sqlite"
)

var (
	cosineOnce       sync.Once
	cosineRegistered bool
)

// cosineSimRegistered registers the cosine_sim(query_blob, vec_blob, dim)
// scalar function with the sqlite driver exactly once per process and
// reports whether registration succeeded. On success, Open uses the
// "indexed path" of spec §4.3; on failure (older driver, registration
// conflict), it falls back to computing cosine similarity in Go.
func cosineSimRegistered() bool {
	cosineOnce.Do(func() {
		err := sqlite.RegisterDeterministicScalarFunction("cosine_sim", 3, cosineSimSQL)
		cosineRegistered = err == nil
	})
	return cosineRegistered
}

func cosineSimSQL(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("cosine_sim: expected 3 args, got %d", len(args))
	}
	qBlob, ok := args[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("cosine_sim: query_blob must be BLOB")
	}
	vBlob, ok := args[1].([]byte)
	if !ok {
		return nil, fmt.Errorf("cosine_sim: vec_blob must be BLOB")
	}
	dim, ok := toInt(args[2])
	if !ok {
		return nil, fmt.Errorf("cosine_sim: dim must be an integer")
	}
	q := decodeVector(qBlob, dim)
	v := decodeVector(vBlob, dim)
	return cosineSimilarity(q, v), nil
}

func toInt(v driver.Value) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
