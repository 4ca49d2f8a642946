package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"invoicesync/internal/logging"
	"invoicesync/internal/model"
	"invoicesync/internal/repository"
)

// Column headers of the invoice export.
const (
	ColInvoiceNumber     = "Rechnungsnummer"
	ColInternalReference = "Interne Referenz"
	ColInvoiceDate       = "Rechnungsdatum"
	ColDeliveryDate      = "Lieferdatum"
	ColNet               = "Netto"
	ColVATRate           = "USt. Rate (%)"
	ColFinalAmount       = "Endbetrag"
	ColCurrency          = "Währung"
	ColTransactionType   = "Transaktionsart"
	ColBillingAddress    = "Rechnungsadresse"
)

// DateLayout is the dd.mm.yyyy form used by the export.
const DateLayout = "02.01.2006"

var requiredColumns = []string{
	ColInvoiceNumber, ColInvoiceDate, ColDeliveryDate, ColNet, ColVATRate, ColFinalAmount, ColCurrency,
}

// InvoiceCSV reads invoices from the CSV export.
type InvoiceCSV struct {
	log *slog.Logger
}

// NewInvoiceCSV creates a CSV invoice source.
func NewInvoiceCSV(logger *slog.Logger) *InvoiceCSV {
	return &InvoiceCSV{log: logging.Component(logger, "invoice_source")}
}

var _ repository.InvoiceSource = (*InvoiceCSV)(nil)

// ReadAll opens path and decodes it with Decode.
func (s *InvoiceCSV) ReadAll(ctx context.Context, path string) ([]model.Invoice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open invoices %q: %w", path, err)
	}
	defer f.Close()

	return s.Decode(ctx, f)
}

// Decode parses the export. Bad rows are skipped with an error log line.
func (s *InvoiceCSV) Decode(ctx context.Context, r io.Reader) ([]model.Invoice, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []model.Invoice{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := indexColumns(header)
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", repository.ErrCorrupt, col)
		}
	}

	invoices := make([]model.Invoice, 0)
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			s.log.Error("error parsing invoice", "event", "invoice_parse_failed", "line", line, "error", err.Error())
			continue
		}

		inv, err := parseRow(idx, rec)
		if err != nil {
			s.log.Error("error parsing invoice", "event", "invoice_parse_failed", "line", line, "error", err.Error())
			continue
		}
		if !inv.Validate() {
			s.log.Error("invoice is not valid", "event", "invoice_invalid", "invoice", inv.InvoiceNumber, "currency", inv.Currency)
			continue
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func indexColumns(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		// Exports written by spreadsheet tools sometimes carry a BOM on the first cell.
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		idx[h] = i
	}
	return idx
}

func parseRow(idx map[string]int, rec []string) (model.Invoice, error) {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var inv model.Invoice
	inv.InvoiceNumber = get(ColInvoiceNumber)
	if inv.InvoiceNumber == "" {
		return inv, errors.New("empty invoice number")
	}
	inv.InternalReference = get(ColInternalReference)
	inv.Currency = get(ColCurrency)
	inv.TransactionType = get(ColTransactionType)
	inv.BillingAddress = get(ColBillingAddress)

	var err error
	if inv.InvoiceDate, err = ParseDate(get(ColInvoiceDate)); err != nil {
		return inv, fmt.Errorf("%s: %w", ColInvoiceDate, err)
	}
	if inv.DeliveryDate, err = ParseDate(get(ColDeliveryDate)); err != nil {
		return inv, fmt.Errorf("%s: %w", ColDeliveryDate, err)
	}
	if inv.Net, err = ParseDecimal(get(ColNet)); err != nil {
		return inv, fmt.Errorf("%s: %w", ColNet, err)
	}
	if inv.VATRate, err = ParseDecimal(get(ColVATRate)); err != nil {
		return inv, fmt.Errorf("%s: %w", ColVATRate, err)
	}
	if inv.FinalAmount, err = ParseDecimal(get(ColFinalAmount)); err != nil {
		return inv, fmt.Errorf("%s: %w", ColFinalAmount, err)
	}
	return inv, nil
}

// ParseDate parses a dd.mm.yyyy date into a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// ParseDecimal accepts a decimal comma ("119,00") as well as a point.
func ParseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.Replace(s, ",", ".", 1))
}
