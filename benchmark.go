package main

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"runtime"
	"slices"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/btree-query-bench/simplekv/dbms/create"
	"github.com/btree-query-bench/simplekv/dbms/index"
	"github.com/btree-query-bench/simplekv/dbms/index/lsm"
	"github.com/btree-query-bench/simplekv/dbms/index/static"
	"github.com/btree-query-bench/simplekv/dbms/layout"
)

type BenchResult struct {
	Name      string
	Config    string
	Operation string
	LatencyNs int64
	MemMB     uint64
	Objects   uint64
}

type MemoryStats struct {
	AllocMB      uint64
	TotalAllocMB uint64
	HeapObjects  uint64
}

func GetDetailedMem() MemoryStats {
	var m runtime.MemStats
	// Force GC to ensure we measure actual live data, not garbage
	runtime.GC()
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocMB:      m.Alloc / 1024 / 1024,
		TotalAllocMB: m.TotalAlloc / 1024 / 1024,
		HeapObjects:  m.HeapObjects,
	}
}

var benchHeader = []string{"Structure", "Config", "TestType", "LatencyNs", "MemMB", "HeapObjects"}

func Record(w *csv.Writer, res BenchResult) error {
	return w.Write([]string{
		res.Name,
		res.Config,
		res.Operation,
		strconv.FormatInt(res.LatencyNs, 10),
		strconv.FormatUint(res.MemMB, 10),
		strconv.FormatUint(res.Objects, 10),
	})
}

func newBenchCmd() *cobra.Command {
	var (
		cf      configFlags
		ops     int
		seed    int64
		csvPath string
		plotOut string
		cache   int64
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Build an image and compare its lookups against pebble",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cf.config()
			if err != nil {
				return err
			}
			if cfg.MaxKey == 0 {
				return errors.New("bench needs a non-empty key domain")
			}
			if !cfg.Balanced() {
				return errors.Wrapf(static.ErrUnsearchable, "bench: node counts %v with max key %d", cfg.NodeCounts, cfg.MaxKey)
			}
			return runBench(cfg, cf.file, benchOptions{ops: ops, seed: seed, csvPath: csvPath, plotOut: plotOut, cache: cache})
		},
	}
	cf.register(cmd)
	cmd.Flags().IntVar(&ops, "ops", 100000, "lookups per workload")
	cmd.Flags().Int64Var(&seed, "seed", 1, "workload key seed")
	cmd.Flags().StringVar(&csvPath, "csv", "bench_results.csv", "CSV output")
	cmd.Flags().StringVar(&plotOut, "plot", "", "PNG bar chart of mean latencies")
	cmd.Flags().Int64Var(&cache, "cache-blocks", 4096, "block cache size of the static image reader")
	return cmd
}

type benchOptions struct {
	ops     int
	seed    int64
	csvPath string
	plotOut string
	cache   int64
}

func runBench(cfg layout.Config, path string, o benchOptions) error {
	f, err := os.Create(o.csvPath)
	if err != nil {
		return errors.Wrap(err, "bench: csv")
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(benchHeader); err != nil {
		return err
	}
	confStr := strconv.Itoa(cfg.Layers())
	var results []BenchResult

	// 1. Bulk load of the static image
	start := time.Now()
	st, err := create.CreateFile(path, cfg)
	if err != nil {
		return err
	}
	results = append(results, BenchResult{"StaticBPlusTree", confStr, "Build", time.Since(start).Nanoseconds() / int64(st.Nodes), 0, 0})

	im, err := static.Open(path, cfg, o.cache)
	if err != nil {
		return err
	}
	defer im.Close()
	rs, err := runSuite("StaticBPlusTree", confStr, im, cfg.MaxKey, o)
	if err != nil {
		return err
	}
	results = append(results, rs...)

	// 2. The same dataset in pebble
	dir, err := os.MkdirTemp("", "simplekv-pebble-*")
	if err != nil {
		return errors.Wrap(err, "bench: pebble dir")
	}
	defer os.RemoveAll(dir)
	start = time.Now()
	db, err := lsm.Load(dir, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	results = append(results, BenchResult{"Pebble", confStr, "Build", time.Since(start).Nanoseconds() / int64(cfg.MaxKey), 0, 0})
	rs, err = runSuite("Pebble", confStr, db, cfg.MaxKey, o)
	if err != nil {
		return err
	}
	results = append(results, rs...)

	for _, r := range results {
		if err := Record(w, r); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "bench: csv")
	}
	slog.Info("benchmark complete", "csv", o.csvPath)

	if o.plotOut != "" {
		return plotResults(results, o.plotOut)
	}
	return nil
}

func runSuite(name, confStr string, idx index.Reader, maxKey uint64, o benchOptions) ([]BenchResult, error) {
	slog.Info("testing", "structure", name, "config", confStr)
	var out []BenchResult
	for _, wt := range []WorkloadType{PointHit, PointMiss, Reporting} {
		ops := o.ops
		if wt == Reporting {
			ops = o.ops / scanWidth
		}
		if ops == 0 {
			continue
		}
		rng := rand.New(rand.NewSource(o.seed))
		start := time.Now()
		seen, err := ExecuteWorkload(idx, wt, ops, maxKey, rng)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", name, wt)
		}
		lat := time.Since(start).Nanoseconds() / int64(ops)
		stats := GetDetailedMem()
		slog.Debug("workload", "structure", name, "workload", wt, "ops", ops, "values", seen, "ns_per_op", lat)
		out = append(out, BenchResult{name, confStr, string(wt), lat, stats.AllocMB, stats.HeapObjects})
	}
	return out, nil
}

// plotResults draws one bar group per operation, one bar per structure.
func plotResults(results []BenchResult, path string) error {
	var names, ops []string
	lat := map[string]map[string]float64{}
	for _, r := range results {
		if _, ok := lat[r.Name]; !ok {
			names = append(names, r.Name)
			lat[r.Name] = map[string]float64{}
		}
		if !slices.Contains(ops, r.Operation) {
			ops = append(ops, r.Operation)
		}
		lat[r.Name][r.Operation] = float64(r.LatencyNs)
	}

	p := plot.New()
	p.Title.Text = "simplekv lookup latency"
	p.Y.Label.Text = "ns/op"

	w := vg.Points(20)
	for i, name := range names {
		vals := make(plotter.Values, len(ops))
		for j, op := range ops {
			vals[j] = lat[name][op]
		}
		bars, err := plotter.NewBarChart(vals, w)
		if err != nil {
			return errors.Wrap(err, "bench: plot")
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = vg.Length(float64(i)-float64(len(names)-1)/2) * w
		p.Add(bars)
		p.Legend.Add(name, bars)
	}
	p.Legend.Top = true
	p.NominalX(ops...)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "bench: save plot")
	}
	fmt.Printf("plot written to %s\n", path)
	return nil
}
