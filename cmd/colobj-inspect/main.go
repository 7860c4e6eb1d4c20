// Command colobj-inspect prints the contents of colobj files.
package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))

func main() {
	app := kingpin.New("colobj-inspect", "A command-line tool to inspect colobj files.")
	addStatsCommand(app)
	addDumpCommand(app)
	addDemoCommand(app)
	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func exitWithErr(err error) {
	level.Error(logger).Log("msg", "inspect failed", "err", err)
	os.Exit(1)
}
