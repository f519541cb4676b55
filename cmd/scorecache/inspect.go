package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/DIDONEproject/musif-sub000/internal/extract"
)

var (
	dumpDepth int
	dumpItems int

	inspectCmd = &cobra.Command{
		Use:   "inspect SNAPSHOT|SCORE",
		Short: "Print the cached entries of a snapshot",
		Long: "Print the cached entries of a snapshot without loading the score it came\n" +
			"from. Given a score file, its current snapshot is inspected.",
		Args: cobra.ExactArgs(1),
		RunE: runInspect,
	}
)

func init() {
	inspectCmd.Flags().IntVarP(&dumpDepth, "depth", "d", 2, "deepest proxy level printed")
	inspectCmd.Flags().IntVar(&dumpItems, "items", 3, "sequence elements shown (0 = all)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	e := extract.New(extract.Options{Config: cfg, Logger: logger})

	path := args[0]
	if filepath.Ext(path) != ".snap" {
		snap, err := e.SnapshotPath(path)
		if err != nil {
			return err
		}
		path = snap
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	pc := e.NewCache()
	defer pc.Close()
	root, err := pc.LoadFile(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s, written %s)\n", path, humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
	return extract.Dump(out, root, extract.DumpOptions{MaxDepth: dumpDepth, MaxItems: dumpItems})
}
