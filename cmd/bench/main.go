// Command bench runs a synthetic workload against the two-tier cache and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/twotier"
	"github.com/IvanBrykalov/twotier/disk"
	pmet "github.com/IvanBrykalov/twotier/metrics/prom"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// benchHelper stores string values as raw bytes, weighed by length.
type benchHelper struct{ twotier.Base[string] }

func (benchHelper) SizeOf(_ string, v string) int64 { return int64(len(v)) }

func (benchHelper) Read(p *disk.ReadPipe) (string, error) {
	r, err := p.Open()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(r)
	return string(b), err
}

func (benchHelper) Write(w io.Writer, v string) error {
	_, err := io.WriteString(w, v)
	return err
}

func main() {
	// ---- Flags ----
	var (
		memCap  = flag.Int64("mem", 64<<20, "memory tier capacity (bytes of values)")
		memTTL  = flag.Duration("ttl", 0, "memory entry timeout (0 = none)")
		diskDir = flag.String("disk", "", "disk tier directory (empty = memory only)")
		diskCap = flag.Int64("disk_cap", 256<<20, "disk tier capacity (bytes)")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		valueSz = flag.Int("value", 256, "value size in bytes")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload entries (0 = auto)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "twotier", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	// ---- Build cache ----
	dir := *diskDir
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("disk dir: %v", err)
		}
	}
	c := twotier.New[string](twotier.Options[string]{
		MemoryCapacity: *memCap,
		MemoryTimeout:  *memTTL,
		DiskDir:        dir,
		DiskCapacity:   *diskCap,
		Helper:         benchHelper{},
		Metrics:        metrics,
	})
	defer func() { _ = c.Close() }()

	value := make([]byte, *valueSz)
	for i := range value {
		value[i] = byte('a' + i%26)
	}
	payload := string(value)

	// ---- Preload to get a realistic hit-rate ----
	pl := *preload
	if pl == 0 {
		pl = int(*memCap / int64(*valueSz) / 2)
		if pl > *keys {
			pl = *keys
		}
	}
	for i := 0; i < pl; i++ {
		c.PutToMemory("k:"+strconv.Itoa(i), payload)
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, writes, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					if _, ok := c.Get(keyByZipf()); ok {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					c.Put(keyByZipf(), payload)
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("mem=%d disk=%q workers=%d keys=%d value=%dB dur=%v seed=%d\n",
		*memCap, dir, workersN, *keys, *valueSz, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
	fmt.Printf("MemorySize()=%d  DiskSize()=%d\n", c.MemorySize(), c.DiskSize())
}
