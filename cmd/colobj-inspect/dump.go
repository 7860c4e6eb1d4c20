package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/colobj/colobj"
)

// dumpCommand prints the occurrences of every column in a colobj file: their
// repetition and definition levels and their values.
type dumpCommand struct {
	file      *string
	column    *string
	batchSize *int
}

func (cmd *dumpCommand) run(_ *kingpin.ParseContext) error {
	f, err := os.Open(*cmd.file)
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

	for _, col := range obj.Columns() {
		if *cmd.column != "" && col.Name() != *cmd.column {
			continue
		}
		cmd.dumpColumn(context.Background(), col)
	}
	return nil
}

func (cmd *dumpCommand) dumpColumn(ctx context.Context, col *colobj.Column) {
	bold := color.New(color.Bold)
	bold.Printf("%s (%v):\n", col.Name(), col.Type())

	reader := col.Reader()
	defer func() { _ = reader.Close() }()

	var (
		repLevels = make([]uint16, *cmd.batchSize)
		defLevels = make([]uint16, *cmd.batchSize)
		validity  = make(colobj.ValidityBitmap, (*cmd.batchSize+7)/8)
		spaced    = make([]colobj.Value, *cmd.batchSize)

		occurrence int
	)
	for {
		levels, _, err := reader.ReadBatchSpaced(ctx, *cmd.batchSize, repLevels, defLevels, validity, 0, spaced)
		if errors.Is(err, io.EOF) {
			return
		} else if err != nil {
			exitWithErr(fmt.Errorf("failed to read column %q: %w", col.Name(), err))
		}

		for i := 0; i < levels; i++ {
			text := "NULL"
			if validity.Get(i) {
				text = spaced[i].String()
			}
			fmt.Printf("\t%d: rep=%d def=%d %s\n", occurrence, repLevels[i], defLevels[i], text)
			occurrence++
		}
	}
}

func addDumpCommand(app *kingpin.Application) {
	cmd := &dumpCommand{}
	dump := app.Command("dump", "Print every occurrence of a colobj file.").Action(cmd.run)
	cmd.file = dump.Arg("file", "The file to dump.").Required().ExistingFile()
	cmd.column = dump.Flag("column", "Only dump the column with this name.").String()
	cmd.batchSize = dump.Flag("batch-size", "Number of occurrences to read per batch.").Default("1024").Int()
}
