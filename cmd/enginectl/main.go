// Command enginectl is a small end-to-end demonstration of the core
// wired to its two external collaborators: it fills a Mem with a
// synthetic write workload, seals it, drains it through a
// WriteIterator into an on-disk run (pkg/runstore), then scans the
// run back and optionally pins the scan's result in pkg/resultcache.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mnohosten/storeiter/pkg/engine"
	"github.com/mnohosten/storeiter/pkg/resultcache"
	"github.com/mnohosten/storeiter/pkg/runstore"
)

func main() {
	dataDir := flag.String("data-dir", "./enginectl-data", "Directory for the generated run file")
	rows := flag.Int("rows", 1000, "Number of distinct keys to write into the memtable")
	memQuota := flag.Int64("mem-quota-bytes", engine.DefaultConfig().MemQuotaBytes, "Soft byte quota a caller should enforce on a Mem (informational here)")
	squashThreshold := flag.Int("squash-threshold", int(engine.DefaultConfig().UpsertSquashThreshold), "UPSERT chain squash threshold")
	cachePinning := flag.Bool("cache-pinning", false, "Pin the final scan's result in the result cache")
	cacheSize := flag.Int("cache-size", 128, "Result cache capacity (entries)")
	flag.Parse()

	cfg := engine.DefaultConfig()
	cfg.MemQuotaBytes = *memQuota
	cfg.UpsertSquashThreshold = uint8(*squashThreshold)
	cfg.CachePinning = *cachePinning

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatalf("enginectl: create data dir: %v", err)
	}

	kd := engine.NewKeyDef(engine.KeyPart{})
	format := engine.NewFormat(1, 2)

	mem := fillMem(kd, format, cfg, *rows)
	fmt.Printf("memtable: %d rows, %d bytes, lsn range [%d,%d]\n",
		mem.RowCount(), mem.ByteCount(), mem.MinLSN(), mem.MaxLSN())

	run := flushToRun(*dataDir, kd, format, cfg, mem)
	fmt.Printf("run: %d entries written to %s\n", run.NumEntries(), filepath.Join(*dataDir, "run-0001"))

	scanned := scanRun(run)
	fmt.Printf("scan: %d statements read back\n", len(scanned))

	if cfg.CachePinning {
		cache := resultcache.NewCache(*cacheSize)
		key := resultcache.Key(resultcache.Descriptor{IterKind: int(engine.IterGE), Key: nil, VLSN: mem.MaxLSN()})
		cache.Put(key, scanned)
		fmt.Printf("result cache: pinned scan under key %s (stats: %v)\n", key, cache.Stats())
	}
}

func fillMem(kd *engine.KeyDef, format *engine.Format, cfg *engine.Config, rows int) *engine.Mem {
	arena := engine.NewArena()
	mem := engine.NewMem(arena, kd, format, 1)

	for i := 0; i < rows; i++ {
		key := []engine.Value{engine.StringValue(fmt.Sprintf("key-%08d", i))}
		payload := []engine.Value{key[0], engine.IntValue(int64(i))}
		if _, err := mem.Insert(engine.Insert, int64(i+1), key, payload); err != nil {
			log.Fatalf("enginectl: insert row %d: %v", i, err)
		}
	}
	return mem
}

func flushToRun(dataDir string, kd *engine.KeyDef, format *engine.Format, cfg *engine.Config, mem *engine.Mem) *runstore.Run {
	rvs := engine.NewReadViewRegistry()
	wi := engine.NewWriteIterator(engine.WIConfig{
		CmpDef:    kd,
		Format:    format,
		RVs:       rvs,
		Squash:    cfg.UpsertSquashThreshold,
		LastLevel: true,
	})
	wi.AddSource(mem.NewStream())
	if err := wi.Start(); err != nil {
		log.Fatalf("enginectl: start write iterator: %v", err)
	}
	defer wi.Close()

	path := filepath.Join(dataDir, "run-0001")
	w, err := runstore.NewWriter(path, kd)
	if err != nil {
		log.Fatalf("enginectl: create run writer: %v", err)
	}
	for {
		stmt, ok, err := wi.Next()
		if err != nil {
			log.Fatalf("enginectl: write iterator: %v", err)
		}
		if !ok {
			break
		}
		if err := w.Write(stmt); err != nil {
			log.Fatalf("enginectl: write run entry: %v", err)
		}
	}

	run, err := w.Finalize()
	if err != nil {
		log.Fatalf("enginectl: finalize run: %v", err)
	}
	return run
}

func scanRun(run *runstore.Run) []*engine.Statement {
	src, err := run.NewSource()
	if err != nil {
		log.Fatalf("enginectl: open run source: %v", err)
	}
	defer src.Close()

	var out []*engine.Statement
	for {
		stmt, err := src.Next()
		if err != nil {
			log.Fatalf("enginectl: scan run: %v", err)
		}
		if stmt == nil {
			return out
		}
		out = append(out, stmt)
	}
}
