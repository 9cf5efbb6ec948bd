package main

import (
	"chat-presence/repositories"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 2
)

// inspect prints the users and messages stored by the server.
// The database must not be opened by a running server at the same time.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("inspect", flag.ContinueOnError)
	flags.SetOutput(stderr)
	dbPath := flags.String("db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB")
	prefix := flags.String("prefix", "", "Prefix to scan (user:, email:, msg:)")
	colours := flags.Bool("colours", true, "Colour the header")
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if *dbPath == "" {
		fmt.Fprintln(stderr, "Missing badger path: set -db or BADGER_FILEPATH")
		return exitUsage
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		fmt.Fprintln(stderr, "Error while opening Badger:", err)
		return exitRuntime
	}
	defer db.Close()

	header := []string{"Key", "Type", "At", "Owner", "Detail"}
	if *colours {
		for i, h := range header {
			header[i] = color.New(color.BgBlack, color.FgGreen).Render(h)
		}
	}

	table := tablewriter.NewWriter(stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(!*colours)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = repositories.Inspect(db, *prefix, func(row repositories.InspectRow) {
		table.Append([]string{row.Key, row.Type, row.At, row.Owner, row.Detail})
	})
	if err != nil {
		fmt.Fprintln(stderr, "Error while scanning Badger:", err)
		return exitRuntime
	}
	table.Render()
	return exitOK
}
