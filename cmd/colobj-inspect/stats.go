package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/colobj/colobj"
)

// statsCommand prints stats for each colobj file in files.
type statsCommand struct {
	files *[]string
}

func (cmd *statsCommand) run(_ *kingpin.ParseContext) error {
	for _, f := range *cmd.files {
		cmd.printStats(f)
	}
	return nil
}

func (cmd *statsCommand) printStats(name string) {
	f, err := os.Open(name)
	if err != nil {
		exitWithErr(fmt.Errorf("failed to open file: %w", err))
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		exitWithErr(fmt.Errorf("failed to read fileinfo: %w", err))
	}

	obj, err := colobj.FromReaderAt(f, fi.Size())
	if err != nil {
		exitWithErr(fmt.Errorf("failed to read file: %w", err))
	}

	bold := color.New(color.Bold)
	bold.Printf("%s:\n", name)
	fmt.Printf(
		"\tfile size: %v, columns: %d\n",
		humanize.Bytes(uint64(fi.Size())),
		len(obj.Columns()),
	)

	for _, col := range obj.Columns() {
		desc := col.Desc()
		fmt.Printf(
			"\t\tname: %s, type: %v, %d occurrences, %d populated values, %v compressed (%v), %v uncompressed\n",
			col.Name(),
			col.Type(),
			desc.RowsCount,
			desc.ValuesCount,
			humanize.Bytes(desc.CompressedSize),
			desc.Compression,
			humanize.Bytes(desc.UncompressedSize),
		)
	}
}

func addStatsCommand(app *kingpin.Application) {
	cmd := &statsCommand{}
	stats := app.Command("stats", "Print stats for colobj files.").Action(cmd.run)
	cmd.files = stats.Arg("file", "The file to print.").ExistingFiles()
}
