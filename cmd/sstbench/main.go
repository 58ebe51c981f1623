// Command sstbench benchmarks raw sstable build and read throughput,
// independent of the full storage engine.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/KevoDB/kevo/sstable"
	"github.com/KevoDB/kevo/sstable/bloom"
)

const defaultValueSize = 100

var (
	numKeys    = flag.Int("keys", 100000, "Number of keys to write")
	valueSize  = flag.Int("value-size", defaultValueSize, "Size of values in bytes")
	dataDir    = flag.String("data-dir", "./sstbench-data", "Directory to store the benchmark table")
	blockSize  = flag.Int("block-size", 4096, "Data block flush threshold in bytes")
	useBloom   = flag.Bool("bloom", true, "Attach a Bloom filter policy")
	bitsPerKey = flag.Int("bloom-bits-per-key", 10, "Bloom filter bits per key")
	sequential = flag.Bool("sequential", true, "Use sequential keys instead of random shuffled ones")
)

func main() {
	flag.Parse()

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data dir: %v\n", err)
		os.Exit(1)
	}
	path := filepath.Join(*dataDir, "bench.sst")

	opts := &sstable.Options{BlockSize: *blockSize}
	if *useBloom {
		opts.FilterPolicy = bloom.New(*bitsPerKey)
	}

	keys := makeKeys(*numKeys, *sequential)
	value := make([]byte, *valueSize)
	for i := range value {
		value[i] = byte(i)
	}

	buildStart := time.Now()
	builder, err := sstable.NewTableBuilder(path, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create table builder: %v\n", err)
		os.Exit(1)
	}
	for _, k := range keys {
		if err := builder.Add(k, value); err != nil {
			fmt.Fprintf(os.Stderr, "failed to add key: %v\n", err)
			os.Exit(1)
		}
	}
	if err := builder.Finish(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to finish table: %v\n", err)
		os.Exit(1)
	}
	buildElapsed := time.Since(buildStart)

	tbl, err := sstable.Open(path, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open table: %v\n", err)
		os.Exit(1)
	}
	defer tbl.Close()

	readStart := time.Now()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < len(keys); i++ {
		k := keys[rng.Intn(len(keys))]
		if _, err := tbl.Get(k); err != nil {
			fmt.Fprintf(os.Stderr, "unexpected Get error for %q: %v\n", k, err)
			os.Exit(1)
		}
	}
	readElapsed := time.Since(readStart)

	scanStart := time.Now()
	it := tbl.NewIterator()
	scanned := 0
	for it.SeekToFirst(); it.Valid(); it.Next() {
		scanned++
	}
	if err := it.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "scan error: %v\n", err)
		os.Exit(1)
	}
	scanElapsed := time.Since(scanStart)

	fmt.Printf("sstbench report (%s)\n", time.Now().Format(time.RFC3339))
	fmt.Printf("  keys:            %d\n", *numKeys)
	fmt.Printf("  value size:      %d bytes\n", *valueSize)
	fmt.Printf("  file size:       %d bytes\n", builder.FileSize())
	fmt.Printf("  build:           %v (%.0f keys/sec)\n", buildElapsed, float64(*numKeys)/buildElapsed.Seconds())
	fmt.Printf("  random get:      %v (%.0f ops/sec)\n", readElapsed, float64(*numKeys)/readElapsed.Seconds())
	fmt.Printf("  full scan:       %v (%d entries, %.0f entries/sec)\n", scanElapsed, scanned, float64(scanned)/scanElapsed.Seconds())
}

// makeKeys returns n distinct keys in sorted order: sstable.Add requires
// strictly increasing keys regardless of how they were generated.
// sequential produces dense zero-padded integers; otherwise keys are
// random byte strings, generated until n distinct values are found.
func makeKeys(n int, sequential bool) [][]byte {
	if sequential {
		keys := make([][]byte, n)
		for i := 0; i < n; i++ {
			keys[i] = []byte(fmt.Sprintf("key-%010d", i))
		}
		return keys
	}

	rng := rand.New(rand.NewSource(42))
	seen := make(map[string]bool, n)
	keys := make([][]byte, 0, n)
	for len(keys) < n {
		k := []byte(fmt.Sprintf("key-%010d", rng.Int63n(int64(n)*10)))
		if seen[string(k)] {
			continue
		}
		seen[string(k)] = true
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	return keys
}
