package sstable

import "github.com/KevoDB/kevo/sstable/cache"

// defaultBlockSize is the soft flush threshold for data blocks: a
// block is never split mid-key to stay under it exactly.
const defaultBlockSize = 4096

// defaultCacheBytes is the default total charge capacity of the
// built-in block cache, measured in bytes of decoded block payload.
const defaultCacheBytes = 8 * 1024 * 1024

// Options configures a table builder or reader. NewOptions fills in
// every default; NewTableBuilder and Open also accept a partial
// literal and complete it via withDefaults.
type Options struct {
	// Comparator defines key ordering. Changing it across a table's
	// lifetime makes the table unreadable by a differently configured
	// reader; the comparator's Name is meant to be persisted by an
	// external collaborator (e.g. a manifest) and checked on open.
	Comparator Comparator

	// FilterPolicy, if non-nil, causes the builder to emit a filter
	// block and the reader to consult it before every block read.
	FilterPolicy FilterPolicy

	// BlockSize is the flush threshold for data blocks.
	BlockSize int

	// BlockRestartInterval is the restart cadence within data blocks.
	BlockRestartInterval int

	// Compression selects the codec used for data, index and metaindex
	// blocks.
	Compression Compression

	// BlockCache holds decoded blocks across reads. A nil cache
	// disables caching; every read decodes its block fresh.
	BlockCache *cache.LRU

	// ParanoidChecks turns on CRC-32C verification of every block read,
	// the same as VerifyChecksums. Checksum and structural corruption is
	// returned as an error whether or not it is set; no corrupted region
	// is ever degraded to empty.
	ParanoidChecks bool

	// VerifyChecksums enables per-read CRC-32C verification. Disabling
	// it trades corruption detection for avoiding the checksum's CPU
	// cost on every block read.
	VerifyChecksums bool

	// Metrics receives telemetry for builder and reader operations. A
	// nil Metrics is replaced by a no-op implementation.
	Metrics Metrics
}

// NewOptions returns Options with every field at its documented
// default: bytewise comparator, no filter policy, 4 KiB blocks, restart
// interval 16, no compression, an 8 MiB LRU block cache, paranoid
// checks and checksum verification both off.
func NewOptions() *Options {
	return &Options{
		Comparator:           BytewiseComparator,
		BlockSize:            defaultBlockSize,
		BlockRestartInterval: blockRestartInterval,
		Compression:          NoCompression,
		BlockCache:           cache.NewLRU(defaultCacheBytes),
		Metrics:              NewNoopMetrics(),
	}
}

// withDefaults returns a copy of o with a zero Comparator, BlockSize,
// BlockRestartInterval or Metrics replaced by its default, so callers
// may construct a partial Options{} literal. A nil BlockCache is kept
// as nil, which disables caching.
func (o *Options) withDefaults() *Options {
	out := *o
	if out.Comparator == nil {
		out.Comparator = BytewiseComparator
	}
	if out.BlockSize <= 0 {
		out.BlockSize = defaultBlockSize
	}
	if out.BlockRestartInterval <= 0 {
		out.BlockRestartInterval = blockRestartInterval
	}
	if out.Metrics == nil {
		out.Metrics = NewNoopMetrics()
	}
	return &out
}
