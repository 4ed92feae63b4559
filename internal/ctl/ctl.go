// Package ctl implements the churchbookctl admin commands.
package ctl

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"churchbook/internal/core"
	"churchbook/internal/ledger"
	"churchbook/internal/services"
	"churchbook/internal/transfer"
)

// Ledger is what the commands need from the ledger service.
type Ledger interface {
	State(ctx context.Context) services.StateView
	Summary(ctx context.Context, year int) ledger.Summary
	Export(ctx context.Context, w io.Writer) error
	Import(ctx context.Context, r io.Reader, pin string) error
	TakeSnapshot(ctx context.Context) (core.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]core.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (core.Snapshot, error)
	RestoreSnapshot(ctx context.Context, id, pin string) error
	Close() error
}

var _ Ledger = (*services.LedgerService)(nil)

// Env is shared by every command.
type Env struct {
	// Open is called once per command run; the command closes the ledger.
	Open     func(ctx context.Context) (Ledger, error)
	Out      io.Writer
	Err      io.Writer
	Currency string
}

// Commands returns the admin commands bound to env.
func Commands(env *Env) []subcommands.Command {
	return []subcommands.Command{
		&summaryCmd{env: env},
		&exportCmd{env: env},
		&importCmd{env: env},
		&snapshotCmd{env: env},
		&restoreCmd{env: env},
	}
}

// Register adds the admin commands and the builtin help commands to cdr.
func Register(cdr *subcommands.Commander, env *Env) {
	cdr.Register(cdr.HelpCommand(), "")
	cdr.Register(cdr.FlagsCommand(), "")
	cdr.Register(cdr.CommandsCommand(), "")
	for _, c := range Commands(env) {
		cdr.Register(c, "ledger")
	}
}

func (e *Env) fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(e.Err, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func (e *Env) usage(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(e.Err, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

// withLedger opens the ledger, runs fn and closes it.
func (e *Env) withLedger(ctx context.Context, fn func(Ledger) error) subcommands.ExitStatus {
	l, err := e.Open(ctx)
	if err != nil {
		return e.fail(err)
	}
	runErr := fn(l)
	if err := l.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return e.fail(runErr)
	}
	return subcommands.ExitSuccess
}

type summaryCmd struct {
	env      *Env
	year     int
	rows     int
	category string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "print balances and period totals" }
func (*summaryCmd) Usage() string {
	return `churchbookctl summary [-year <yyyy>] [-rows n] [-category <name>]

  Prints today's balance, the weekly and yearly totals, the offering
  breakdown and the expense breakdown of the selected year.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "year", 0, "year for the breakdowns (defaults to the current year)")
	f.IntVar(&c.rows, "rows", 10, "number of most recent ledger rows to print")
	f.StringVar(&c.category, "category", ledger.AllCategories, "offering category to break down, or ALL")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.year < 0 || c.rows < 0 {
		return c.env.usage("year and rows must not be negative")
	}
	return c.env.withLedger(ctx, func(l Ledger) error {
		name := l.State(ctx).ChurchName
		sum := l.Summary(ctx, c.year)
		sum.SelectedCore = ledger.FilterBreakdown(sum.SelectedCore, c.category)
		return WriteSummary(c.env.Out, name, sum, c.env.Currency, c.rows)
	})
}

type exportCmd struct {
	env    *Env
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write members, transactions and categories as JSON" }
func (*exportCmd) Usage() string {
	return `churchbookctl export [-o <file>]

  Writes the export document to the file, or to stdout.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "output file (defaults to stdout)")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withLedger(ctx, func(l Ledger) error {
		if c.output == "" {
			return l.Export(ctx, c.env.Out)
		}
		file, err := os.Create(c.output)
		if err != nil {
			return fmt.Errorf("create %s: %w", c.output, err)
		}
		if err := l.Export(ctx, file); err != nil {
			file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return fmt.Errorf("close %s: %w", c.output, err)
		}
		fmt.Fprintf(c.env.Err, "Exported to %s\n", c.output)
		return nil
	})
}

type importCmd struct {
	env   *Env
	input string
	pin   string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "replace the ledger with an export document" }
func (*importCmd) Usage() string {
	return `churchbookctl import -i <file> [-pin <pin>]

  Replaces members, transactions and, when present, the expense categories.
  A snapshot of the replaced data is taken first.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.input, "i", "", "export document to import (- for stdin)")
	f.StringVar(&c.pin, "pin", "", "settings PIN, when one is set")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.input == "" {
		return c.env.usage("-i is required")
	}
	var r io.Reader = os.Stdin
	if c.input != "-" {
		file, err := os.Open(c.input)
		if err != nil {
			return c.env.fail(err)
		}
		defer file.Close()
		r = file
	}
	return c.env.withLedger(ctx, func(l Ledger) error {
		if err := l.Import(ctx, r, c.pin); err != nil {
			return err
		}
		st := l.State(ctx)
		fmt.Fprintf(c.env.Out, "Imported %d members and %d transactions\n", len(st.Members), len(st.Transactions))
		return nil
	})
}

type snapshotCmd struct {
	env  *Env
	list bool
	show string
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "take or list snapshots" }
func (*snapshotCmd) Usage() string {
	return `churchbookctl snapshot [-list | -show <id>]

  Takes a snapshot of the ledger, lists the stored ones newest first, or
  writes one snapshot as JSON.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "list", false, "list snapshots instead of taking one")
	f.StringVar(&c.show, "show", "", "write the snapshot with this id to stdout")
}

func (c *snapshotCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.list && c.show != "" {
		return c.env.usage("-list and -show are exclusive")
	}
	return c.env.withLedger(ctx, func(l Ledger) error {
		switch {
		case c.list:
			snaps, err := l.ListSnapshots(ctx)
			if err != nil {
				return err
			}
			return WriteSnapshots(c.env.Out, snaps)
		case c.show != "":
			snap, err := l.GetSnapshot(ctx, c.show)
			if err != nil {
				return err
			}
			return transfer.EncodeSnapshot(c.env.Out, snap)
		default:
			snap, err := l.TakeSnapshot(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.env.Out, "Snapshot %s taken\n", snap.ID)
			return nil
		}
	})
}

type restoreCmd struct {
	env *Env
	id  string
	pin string
}

func (*restoreCmd) Name() string     { return "restore" }
func (*restoreCmd) Synopsis() string { return "restore a snapshot" }
func (*restoreCmd) Usage() string {
	return `churchbookctl restore -id <snapshot> [-pin <pin>]

  Replaces the ledger with the snapshot. A snapshot of the replaced data is
  taken first.
`
}

func (c *restoreCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "snapshot id (see snapshot -list)")
	f.StringVar(&c.pin, "pin", "", "settings PIN, when one is set")
}

func (c *restoreCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		return c.env.usage("-id is required")
	}
	return c.env.withLedger(ctx, func(l Ledger) error {
		if err := l.RestoreSnapshot(ctx, c.id, c.pin); err != nil {
			return err
		}
		fmt.Fprintf(c.env.Out, "Restored snapshot %s\n", c.id)
		return nil
	})
}
