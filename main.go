package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/btree-query-bench/simplekv/dbms/create"
	"github.com/btree-query-bench/simplekv/dbms/index/static"
	"github.com/btree-query-bench/simplekv/dbms/layout"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("simplekv failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	rootCmd := &cobra.Command{
		Use:           "simplekv",
		Short:         "Static B+ tree key-value image builder",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogger(logLevel)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	rootCmd.AddCommand(newCreateCmd(), newInspectCmd(), newGetCmd(), newBenchCmd())
	return rootCmd
}

func initLogger(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return errors.Wrapf(err, "log level %q", level)
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
	return nil
}

// configFlags selects the image shape: either the reference sizing for a
// number of layers, or explicit node counts and key bound.
type configFlags struct {
	layers int
	nodes  string
	maxKey uint64
	file   string
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "simplekv.db", "image file")
	cmd.Flags().IntVarP(&f.layers, "layers", "l", 3, "tree height for the dense reference sizing")
	cmd.Flags().StringVar(&f.nodes, "nodes", "", "comma separated node count per level, overrides --layers")
	cmd.Flags().Uint64Var(&f.maxKey, "max-key", 0, "exclusive key bound, required with --nodes")
}

func (f *configFlags) config() (layout.Config, error) {
	if f.nodes == "" {
		return layout.Dense(f.layers)
	}
	counts, err := layout.ParseNodeCounts(f.nodes)
	if err != nil {
		return layout.Config{}, err
	}
	cfg := layout.NewConfig(counts, f.maxKey)
	return cfg, cfg.Validate()
}

func newCreateCmd() *cobra.Command {
	var (
		cf          configFlags
		bufferBytes int
		direct      bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Build a new image: B+ tree index followed by the value log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cf.config()
			if err != nil {
				return err
			}
			st, err := create.CreateFile(cf.file, cfg,
				create.WithLogger(slog.Default()),
				create.WithBufferBytes(bufferBytes),
				create.WithDirectIO(direct))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes, %d log records, %d bytes\n", cf.file, st.Nodes, st.Records, st.Total())
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().IntVar(&bufferBytes, "buffer-bytes", create.DefaultBufferBytes, "staging buffer size per writer")
	cmd.Flags().BoolVar(&direct, "direct", false, "open the image with O_DIRECT")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var (
		cf    configFlags
		depth int
		width int
		check bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the level plan and node structure of an image",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cf.config()
			if err != nil {
				return err
			}
			im, err := static.Open(cf.file, cfg, 1024)
			if err != nil {
				return err
			}
			defer im.Close()

			out := cmd.OutOrStdout()
			for _, lv := range im.Levels() {
				kind := "internal"
				if lv.Leaf {
					kind = "leaf"
				}
				fmt.Fprintf(out, "layer %d: %d %s nodes from #%d, extent %d, sub-extent %d\n",
					lv.Level, lv.Nodes, kind, lv.First, lv.Extent, lv.SubExtent)
			}
			fmt.Fprintf(out, "index %d bytes, value log at %d, %d records\n", cfg.IndexSize(), cfg.IndexSize(), cfg.LogRecords())

			if depth > 0 {
				tree, err := im.Tree(depth, width)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, tree.String())
			}
			if check {
				if err := im.Check(); err != nil {
					return err
				}
				fmt.Fprintln(out, "check: ok")
			}
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().IntVar(&depth, "depth", 0, "levels below the root to render")
	cmd.Flags().IntVar(&width, "width", 4, "children rendered per node")
	cmd.Flags().BoolVar(&check, "check", false, "verify every node against the plan")
	return cmd
}

func newGetCmd() *cobra.Command {
	var cf configFlags
	cmd := &cobra.Command{
		Use:   "get KEY...",
		Short: "Look keys up in an image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cf.config()
			if err != nil {
				return err
			}
			im, err := static.Open(cf.file, cfg, 1024)
			if err != nil {
				return err
			}
			defer im.Close()

			out := cmd.OutOrStdout()
			for _, a := range args {
				key, err := strconv.ParseUint(strings.TrimSpace(a), 10, 64)
				if err != nil {
					return errors.Wrapf(err, "key %q", a)
				}
				v, ok, err := im.Get(key)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(out, "%d: not found\n", key)
					continue
				}
				fmt.Fprintf(out, "%d: %s\n", key, v)
			}
			return nil
		},
	}
	cf.register(cmd)
	return cmd
}
