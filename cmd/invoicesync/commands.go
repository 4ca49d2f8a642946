package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"invoicesync/internal/config"
	"invoicesync/internal/ledger"
)

type syncCmd struct {
	cfg      *config.AppConfig
	invoices string
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "upload pending invoices as vouchers and record them in the ledger" }
func (*syncCmd) Usage() string {
	return `invoicesync sync [-invoices <file>]

  Reads the invoice export, uploads every invoice that is not in the ledger
  yet (voucher first, then its PDF) and saves the ledger. Failed invoices
  are logged and retried on the next run.
`
}

func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.invoices, "invoices", c.cfg.InvoicesPath, "Invoice export (CSV) to read.")
}

func (c *syncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	a, err := newApp(ctx, c.cfg, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	sum, err := a.sync.Run(ctx, c.invoices)
	a.writeMetrics()
	if err != nil {
		if !errors.Is(err, ledger.ErrLedgerPersist) {
			a.log.Error("sync aborted", "event", "sync_failed", "error", err.Error())
		}
		return subcommands.ExitFailure
	}

	fmt.Printf("%d uploaded, %d failed, %d already synced\n", sum.Succeeded, sum.Failed, sum.AlreadySynced)
	return subcommands.ExitSuccess
}

type pendingCmd struct {
	cfg      *config.AppConfig
	invoices string
}

func (*pendingCmd) Name() string     { return "pending" }
func (*pendingCmd) Synopsis() string { return "list the invoices the next sync would upload" }
func (*pendingCmd) Usage() string {
	return `invoicesync pending [-invoices <file>]

  Prints one line per pending invoice: number, invoice date and final amount.
  Nothing is uploaded.
`
}

func (c *pendingCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.invoices, "invoices", c.cfg.InvoicesPath, "Invoice export (CSV) to read.")
}

func (c *pendingCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	a, err := newApp(ctx, c.cfg, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	pending, err := a.sync.Pending(ctx, c.invoices)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	for _, inv := range pending {
		fmt.Printf("%s\t%s\t%s %s\n", inv.ResolvedNumber(), inv.VoucherDate(), inv.FinalAmount.StringFixed(2), inv.Currency)
	}
	return subcommands.ExitSuccess
}

type ledgerCmd struct {
	cfg *config.AppConfig
}

func (*ledgerCmd) Name() string     { return "ledger" }
func (*ledgerCmd) Synopsis() string { return "list the invoice numbers already synced" }
func (*ledgerCmd) Usage() string {
	return `invoicesync ledger

  Prints the ledger, one invoice number per line, in the order they were synced.
`
}

func (*ledgerCmd) SetFlags(*flag.FlagSet) {}

func (c *ledgerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	a, err := newApp(ctx, c.cfg, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	entries, err := a.sync.Completed(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	for _, n := range entries {
		fmt.Println(n)
	}
	return subcommands.ExitSuccess
}
