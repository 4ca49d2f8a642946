package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicesync/internal/logging"
	"invoicesync/internal/repository/csvfile"
	"invoicesync/internal/settings"
	"invoicesync/internal/voucher"
	"invoicesync/internal/voucher/vouchertest"
)

const invoicesCSV = `Rechnungsnummer,Interne Referenz,Rechnungsdatum,Lieferdatum,Netto,USt. Rate (%),Endbetrag,Währung,Transaktionsart,Rechnungsadresse
INV-1,,05.03.2024,04.03.2024,"119,00",19,"100,00",EUR,B2B,ACME GmbH
INV-2,,06.03.2024,06.03.2024,"238,00",19,"200,00",EUR,B2C,ACME GmbH
INV-3,,07.03.2024,07.03.2024,"50,00",0,"50,00",USD,B2C,ACME GmbH
`

type e2eEnv struct {
	dir          string
	invoicesPath string
	ledgerPath   string
	settingsPath string
	server       *vouchertest.Server
}

func newE2EEnv(t *testing.T, apiKey string) *e2eEnv {
	t.Helper()
	dir := t.TempDir()
	env := &e2eEnv{
		dir:          dir,
		invoicesPath: filepath.Join(dir, "invoices.csv"),
		ledgerPath:   filepath.Join(dir, "done_invoices.csv"),
		settingsPath: filepath.Join(dir, "settings.json"),
		server:       vouchertest.New(),
	}

	require.NoError(t, os.WriteFile(env.invoicesPath, []byte(invoicesCSV), 0o644))
	require.NoError(t, os.WriteFile(env.ledgerPath, []byte("Rechnungsnummer\nINV-1\n"), 0o644))

	attachments := filepath.Join(dir, "attachments")
	require.NoError(t, os.MkdirAll(filepath.Join(attachments, "03-2024"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(attachments, "03-2024", "INV-2.pdf"), []byte("%PDF-1.4 INV-2"), 0o644))

	raw, err := json.Marshal(settings.Settings{
		APIKey:   apiKey,
		Prefixes: []settings.PrefixConfig{{Prefix: "INV", Path: attachments}},
		Contacts: []settings.ContactConfig{{Address: "ACME GmbH", ContactID: "contact-acme"}},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.settingsPath, raw, 0o600))
	return env
}

func (e *e2eEnv) service(prompt settings.Prompter) (*SyncService, *settings.FileResolver) {
	logger := logging.Discard()
	resolver := settings.NewFileResolver(e.settingsPath, prompt, logger)
	client := voucher.NewClient(vouchertest.BaseURL, e.server.Client(), time.Second)
	uploader := NewVoucherUploader(client, resolver, nil, logger)
	return NewSyncService(csvfile.NewInvoiceCSV(logger), csvfile.NewLedgerCSV(e.ledgerPath), uploader, nil, logger), resolver
}

func TestSync_EndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newE2EEnv(t, "valid-key-0123456789")
	svc, _ := env.service(settings.NewStaticPrompter())

	sum, err := svc.Run(ctx, env.invoicesPath)

	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, AlreadySynced: 1, Attempted: 1, Succeeded: 1}, sum)

	assert.Equal(t, 1, env.server.VoucherPosts())
	vouchers := env.server.Vouchers()
	require.Len(t, vouchers, 1)
	assert.Equal(t, "INV-2", vouchers[0].VoucherNumber)
	assert.Equal(t, "contact-acme", vouchers[0].ContactID)
	assert.Equal(t, "2024-03-06", vouchers[0].VoucherDate)
	assert.Equal(t, "38", vouchers[0].TotalTaxAmount.String())

	files := env.server.Files()
	require.Len(t, files, 1)
	assert.Equal(t, env.server.VoucherIDs()[0], files[0].VoucherID)
	assert.Equal(t, "INV-2.pdf", files[0].Filename)
	assert.Equal(t, "%PDF-1.4 INV-2", string(files[0].Content))

	ledgerRaw, err := os.ReadFile(env.ledgerPath)
	require.NoError(t, err)
	assert.Equal(t, "Rechnungsnummer\nINV-1\nINV-2\n", string(ledgerRaw))

	// A second run has nothing left to do.
	sum, err = svc.Run(ctx, env.invoicesPath)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, AlreadySynced: 2}, sum)
	assert.Equal(t, 1, env.server.VoucherPosts())
}

func TestSync_EndToEnd_RefreshesRejectedKey(t *testing.T) {
	ctx := context.Background()
	env := newE2EEnv(t, "stale-key-0123456789")
	env.server.Unauthorized = 1
	prompt := settings.NewStaticPrompter("fresh-key-0123456789")
	svc, resolver := env.service(prompt)

	sum, err := svc.Run(ctx, env.invoicesPath)

	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 2, env.server.VoucherPosts())
	assert.Len(t, prompt.Asked, 1)

	stored, err := resolver.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "fresh-key-0123456789", stored.APIKey)
}

func TestSync_EndToEnd_MissingAttachment(t *testing.T) {
	ctx := context.Background()
	env := newE2EEnv(t, "valid-key-0123456789")
	require.NoError(t, os.Remove(filepath.Join(env.dir, "attachments", "03-2024", "INV-2.pdf")))
	svc, _ := env.service(settings.NewStaticPrompter())

	sum, err := svc.Run(ctx, env.invoicesPath)

	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, []string{"INV-2"}, sum.FailedNumbers)
	assert.Zero(t, env.server.VoucherPosts())

	ledgerRaw, err := os.ReadFile(env.ledgerPath)
	require.NoError(t, err)
	assert.Equal(t, "Rechnungsnummer\nINV-1\n", string(ledgerRaw))
}
