package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btree-query-bench/simplekv/dbms/index/static"
	"github.com/btree-query-bench/simplekv/dbms/layout"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestCreateInspectGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	out := run(t, "create", "--layers", "2", "-f", path, "--buffer-bytes", "4096")
	require.Contains(t, out, "32 nodes, 121 log records")

	cfg, err := layout.Dense(2)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(cfg.FileSize()), info.Size())

	out = run(t, "inspect", "--layers", "2", "-f", path, "--check", "--depth", "1", "--width", "1")
	require.Contains(t, out, "layer 0: 1 internal nodes from #0, extent 961, sub-extent 31")
	require.Contains(t, out, "layer 1: 31 leaf nodes from #1, extent 31, sub-extent 1")
	require.Contains(t, out, "check: ok")

	out = run(t, "get", "--layers", "2", "-f", path, "7", "960", "961")
	require.Contains(t, out, "7: 7\n")
	require.Contains(t, out, "960: 960\n")
	require.Contains(t, out, "961: not found\n")
}

func TestCreateExplicitNodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	out := run(t, "create", "--nodes", "1,3", "--max-key", "100", "-f", path)
	require.Contains(t, out, "4 nodes, 13 log records")
}

func TestUnbalancedShapeLookups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kv.db")
	run(t, "create", "--nodes", "1,3", "--max-key", "100", "-f", path)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--log-level", "error", "get", "--nodes", "1,3", "--max-key", "100", "-f", path, "5"})
	require.ErrorIs(t, cmd.Execute(), static.ErrUnsearchable)

	csvPath := filepath.Join(dir, "bench.csv")
	cmd = newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--log-level", "error", "bench", "--nodes", "1,3", "--max-key", "100", "-f", path, "--ops", "10", "--csv", csvPath})
	require.ErrorIs(t, cmd.Execute(), static.ErrUnsearchable)
	require.NoFileExists(t, csvPath, "workloads must not start")
}

func TestCreateRejectsEmptyLevel(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--log-level", "error", "create", "--nodes", "1,0", "--max-key", "10", "-f", filepath.Join(t.TempDir(), "kv.db")})
	require.ErrorIs(t, cmd.Execute(), layout.ErrEmptyLevel)
}

func TestBench(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "bench.csv")
	run(t, "bench", "--layers", "2", "-f", filepath.Join(dir, "kv.db"), "--ops", "200", "--csv", csvPath)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "Structure,Config,TestType,LatencyNs,MemMB,HeapObjects")
	require.Contains(t, string(data), "StaticBPlusTree,2,Point (hit),")
	require.Contains(t, string(data), "Pebble,2,Reporting (Range),")
}
