package engine

// defaultUpsertSquashThreshold is the default cap on NUpserts, mirroring
// the teacher's lsm.DefaultConfig shape (constants with a matching
// Config field and a DefaultConfig constructor).
const defaultUpsertSquashThreshold uint8 = 16

// Config holds the tunables the core itself forwards but does not
// enforce: MemQuotaBytes is read by the scheduler that owns a Mem's
// lifecycle, not by Mem itself; CachePinning is forwarded to whatever
// wires pkg/resultcache to iterator output.
type Config struct {
	MemQuotaBytes         int64
	UpsertSquashThreshold uint8
	CachePinning          bool
}

// DefaultConfig mirrors the teacher's lsm.DefaultConfig(dir) shape: a
// constructor returning sane defaults the caller can override field by
// field before use.
func DefaultConfig() *Config {
	return &Config{
		MemQuotaBytes:         64 << 20,
		UpsertSquashThreshold: defaultUpsertSquashThreshold,
		CachePinning:          false,
	}
}
