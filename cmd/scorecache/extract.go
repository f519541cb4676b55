package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	platformerrors "github.com/jmgilman/go/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/DIDONEproject/musif-sub000/internal/config"
	"github.com/DIDONEproject/musif-sub000/internal/extract"
)

var (
	fresh        bool
	noSave       bool
	outputFormat string

	extractCmd = &cobra.Command{
		Use:   "extract SCORE...",
		Short: "Extract features from score files",
		Long: "Extract features from YAML score files. Scores with a snapshot from an\n" +
			"earlier run are answered from the snapshot without being parsed.",
		Args: cobra.MinimumNArgs(1),
		RunE: runExtract,
	}
)

func init() {
	flags := extractCmd.Flags()
	flags.BoolVar(&fresh, "fresh", false, "ignore existing snapshots")
	flags.BoolVar(&noSave, "no-save", false, "do not write snapshots")
	flags.StringVarP(&outputFormat, "output", "o", "table", "output format: table | yaml")
	flags.IntP("workers", "w", 4, "scores extracted in parallel")
	flags.Int("compression", 3, "snapshot zstd level (0 = uncompressed)")
	flags.String("reuse-policy", "fifo", "reuse cache policy: fifo | lru | 2q")

	_ = viper.BindPFlag(config.KeyWorkers, flags.Lookup("workers"))
	_ = viper.BindPFlag(config.KeyCompression, flags.Lookup("compression"))
	_ = viper.BindPFlag(config.KeyReusePolicy, flags.Lookup("reuse-policy"))
}

func runExtract(cmd *cobra.Command, args []string) error {
	if outputFormat != "table" && outputFormat != "yaml" {
		return platformerrors.New(platformerrors.CodeInvalidInput, "unknown output format "+strconv.Quote(outputFormat))
	}

	proxyMetrics, reuseMetrics := metricsFor()
	e := extract.New(extract.Options{
		Config:       cfg,
		Fresh:        fresh,
		NoSave:       noSave,
		Logger:       logger,
		ProxyMetrics: proxyMetrics,
		ReuseMetrics: reuseMetrics,
	})

	results, err := e.Run(cmd.Context(), args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	}
	return writeTable(out, results, e.Parsed())
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func writeTable(w io.Writer, results []extract.Result, parsed int64) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("FILE", "TITLE", "PART", "MEASURES", "NOTES", "RANGE", "AMBITUS", "DURATION").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	var snapshots uint64
	var hits, misses int64
	var reused int
	for _, r := range results {
		snapshots += uint64(r.SnapshotSize)
		hits += r.Stats.Hits
		misses += r.Stats.Misses
		if r.FromSnapshot {
			reused++
		}
		for _, p := range r.Features.Parts {
			span := ""
			if p.Lowest != "" {
				span = p.Lowest + "-" + p.Highest
			}
			t.Row(
				filepath.Base(r.File),
				r.Features.Title,
				p.Name,
				strconv.Itoa(p.Measures),
				strconv.Itoa(p.Notes),
				span,
				strconv.Itoa(p.Ambitus),
				strconv.FormatFloat(p.Duration, 'f', -1, 64),
			)
		}
	}

	if _, err := fmt.Fprintln(w, t); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d scores, %d parsed, %d from snapshot; %s hits, %s misses; snapshots %s\n",
		len(results), parsed, reused,
		humanize.Comma(hits), humanize.Comma(misses), humanize.Bytes(snapshots))
	return err
}
