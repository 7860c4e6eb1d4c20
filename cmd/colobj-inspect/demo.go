package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log/level"

	"github.com/colobj/colobj"
	"github.com/colobj/colobj/colmd"
	"github.com/colobj/colobj/columnar"
)

// demoCommand writes a small nested column to a file and reads it back,
// verifying the round trip. It exits non-zero on any mismatch, making it
// usable as a smoke test.
type demoCommand struct {
	file *string
}

func (cmd *demoCommand) run(_ *kingpin.ParseContext) error {
	if err := cmd.demo(context.Background()); err != nil {
		exitWithErr(err)
	}
	level.Info(logger).Log("msg", "demo round trip succeeded", "file", *cmd.file)
	return nil
}

func (cmd *demoCommand) demo(ctx context.Context) error {
	// One row holding the nested list [[1, NULL], [2, 3], [4]]: five
	// occurrences, with occurrence 1 NULL at the value level.
	var (
		repLevels = []uint16{0, 1, 1, 1, 1}
		defLevels = []uint16{3, 2, 3, 3, 3}
		validity  = colobj.ValidityBitmap{0b11101}
		spaced    = []colobj.Value{
			columnar.Int32Value(1),
			{}, // NULL occurrence; the slot is never read.
			columnar.Int32Value(2),
			columnar.Int32Value(3),
			columnar.Int32Value(4),
		}
	)

	builder, err := colobj.NewBuilder(colobj.BuilderConfig{
		TargetPageSize:   1024 * 1024,
		TargetObjectSize: 16 * 1024 * 1024,
	})
	if err != nil {
		return fmt.Errorf("creating builder: %w", err)
	}

	writer, err := builder.OpenColumn(colobj.ColumnSchema{
		Name:               "element",
		Type:               colmd.PhysicalTypeInt32,
		MaxDefinitionLevel: 3,
		MaxRepetitionLevel: 1,
		Compression:        colmd.CompressionTypeSnappy,
	})
	if err != nil {
		return fmt.Errorf("opening column: %w", err)
	}

	levels, values, err := writer.WriteBatchSpaced(repLevels, defLevels, validity, 0, spaced)
	if err != nil {
		return fmt.Errorf("writing batch: %w", err)
	}
	if levels != 5 || values != 4 {
		return fmt.Errorf("wrote %d occurrences and %d values, expected 5 and 4", levels, values)
	}

	var buf bytes.Buffer
	if _, err := builder.Flush(&buf); err != nil {
		return fmt.Errorf("flushing builder: %w", err)
	}
	if err := os.WriteFile(*cmd.file, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	obj, err := colobj.FromReaderAt(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}

	reader := obj.Columns()[0].Reader()
	defer func() { _ = reader.Close() }()

	var (
		gotRep = make([]uint16, 8)
		gotDef = make([]uint16, 8)
		gotVal = make([]colobj.Value, 8)
	)
	levels, values, err = reader.ReadBatch(ctx, 8, gotRep, gotDef, gotVal)
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading batch: %w", err)
	}
	if levels != 5 || values != 4 {
		return fmt.Errorf("read %d occurrences and %d values, expected 5 and 4", levels, values)
	}
	for i, expect := range []int32{1, 2, 3, 4} {
		if got := gotVal[i].Int32(); got != expect {
			return fmt.Errorf("value %d is %d, expected %d", i, got, expect)
		}
	}
	return nil
}

func addDemoCommand(app *kingpin.Application) {
	cmd := &demoCommand{}
	demo := app.Command("demo", "Write a small file and verify a read round trip.").Action(cmd.run)
	cmd.file = demo.Arg("file", "Path to write the file to.").Required().String()
}
