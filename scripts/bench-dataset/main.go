// bench-dataset measures append throughput and key-set load cost on a
// synthetic dataset, to size entity counts and horizons before pointing
// traction at real sources.
//
// Usage:
//
//	go run ./scripts/bench-dataset --records 1000000 --batch 10000 \
//	  --profile-dir docs/profiles/dataset
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/Sumatoshi-tech/traction/internal/dataset"
)

// entitiesPerDay spreads the synthetic records over this many entities, so
// the key set sees realistic (day, entity) cardinality instead of one giant
// series.
const entitiesPerDay = 25

const baseDay = dataset.Day("2020-01-01")

func main() {
	recordCount := flag.Int("records", 1_000_000, "Number of synthetic records to append")
	batchSize := flag.Int("batch", 10_000, "Records per append batch")
	storePath := flag.String("store", "", "Dataset path (default: temp file, removed afterwards)")
	profileDir := flag.String("profile-dir", "", "Directory to write heap profiles (empty = no profiles)")

	flag.Parse()

	path := *storePath
	if path == "" {
		dir, dirErr := os.MkdirTemp("", "traction-bench")
		if dirErr != nil {
			log.Fatalf("mkdir temp: %v", dirErr)
		}

		defer os.RemoveAll(dir)

		path = filepath.Join(dir, "traction.csv")
	}

	if *profileDir != "" {
		if err := os.MkdirAll(*profileDir, 0o755); err != nil {
			log.Fatalf("mkdir profile-dir: %v", err)
		}
	}

	type heapSnapshot struct {
		label     string
		heapInUse uint64
		heapSys   uint64
		heapIdle  uint64
	}

	var snapshots []heapSnapshot

	takeSnapshot := func(label string) {
		runtime.GC()
		runtime.GC()

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		snapshots = append(snapshots, heapSnapshot{
			label:     label,
			heapInUse: m.HeapInuse,
			heapSys:   m.HeapSys,
			heapIdle:  m.HeapIdle,
		})
		log.Printf("  [heap] %-24s inuse=%6.1f MB  sys=%6.1f MB  idle=%6.1f MB",
			label, float64(m.HeapInuse)/1e6, float64(m.HeapSys)/1e6, float64(m.HeapIdle)/1e6)
	}

	writeHeapProfile := func(name string) {
		if *profileDir == "" {
			return
		}

		runtime.GC()
		runtime.GC()

		profile := filepath.Join(*profileDir, name)

		f, ferr := os.Create(profile)
		if ferr != nil {
			log.Printf("warning: create heap profile %s: %v", profile, ferr)

			return
		}
		defer f.Close()

		if perr := pprof.WriteHeapProfile(f); perr != nil {
			log.Printf("warning: write heap profile %s: %v", profile, perr)
		}
	}

	store := dataset.NewStore(path)

	takeSnapshot("before_append")

	appendStart := time.Now()

	for start := 0; start < *recordCount; start += *batchSize {
		size := min(*batchSize, *recordCount-start)

		if err := store.Append(syntheticBatch(start, size)); err != nil {
			log.Fatalf("append batch at %d: %v", start, err)
		}
	}

	appendDur := time.Since(appendStart)
	log.Printf("appended %d records in %s (%.0f records/s)",
		*recordCount, appendDur.Round(time.Millisecond), float64(*recordCount)/appendDur.Seconds())

	takeSnapshot("after_append")
	writeHeapProfile("heap_after_append.prof")

	loadStart := time.Now()

	keys, loadErr := store.Load()
	if loadErr != nil {
		log.Fatalf("load keys: %v", loadErr)
	}

	loadDur := time.Since(loadStart)
	log.Printf("loaded %d keys in %s", keys.Len(), loadDur.Round(time.Millisecond))

	takeSnapshot("after_load")
	writeHeapProfile("heap_after_load.prof")

	readStart := time.Now()

	records, readErr := store.ReadAll()
	if readErr != nil {
		log.Fatalf("read all: %v", readErr)
	}

	readDur := time.Since(readStart)
	log.Printf("read %d records in %s", len(records), readDur.Round(time.Millisecond))

	takeSnapshot("after_read_all")
	writeHeapProfile("heap_after_read_all.prof")

	fmt.Println()
	fmt.Println("=== Heap Memory Timeline ===")
	fmt.Printf("%-26s %10s %10s %10s\n", "Phase", "InUse(MB)", "Sys(MB)", "Idle(MB)")
	fmt.Println("--------------------------+----------+----------+----------")

	for _, s := range snapshots {
		fmt.Printf("%-26s %10.1f %10.1f %10.1f\n",
			s.label, float64(s.heapInUse)/1e6, float64(s.heapSys)/1e6, float64(s.heapIdle)/1e6)
	}

	fmt.Println()
	fmt.Printf("append: %s   load: %s   read: %s\n",
		appendDur.Round(time.Millisecond), loadDur.Round(time.Millisecond), readDur.Round(time.Millisecond))
}

// syntheticBatch generates size records starting at offset start, cycling
// entities within a day so keys stay unique.
func syntheticBatch(start, size int) []dataset.Record {
	records := make([]dataset.Record, size)

	for i := range size {
		n := start + i
		records[i] = dataset.Record{
			Day:    baseDay.AddDays(n / entitiesPerDay),
			Entity: fmt.Sprintf("pkg-%03d", n%entitiesPerDay),
			Source: dataset.SourcePyPI,
			Value:  int64(n),
		}
	}

	return records
}
