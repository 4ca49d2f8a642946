package model

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// AcceptedCurrency is the only currency the remote ledger is fed with.
	AcceptedCurrency = "EUR"
	// TransactionTypeB2B tags business-to-business invoices; they are booked net.
	TransactionTypeB2B = "B2B"
	// InvoiceNumberSeparator splits the family prefix from the running number.
	InvoiceNumberSeparator = "-"
	// AttachmentExt is the file extension of invoice attachments.
	AttachmentExt = ".pdf"
	// DateLayout is the calendar date layout used on the wire.
	DateLayout = "2006-01-02"
)

var (
	ErrMalformedInvoiceNumber = errors.New("malformed invoice number")
	ErrPrefixNotConfigured    = errors.New("prefix not configured")
)

// PrefixResolver maps an invoice number prefix to the local folder holding that family's PDFs.
type PrefixResolver interface {
	PrefixPath(ctx context.Context, prefix string) (string, error)
}

// Invoice is one row of the invoice export. It is read once and never mutated.
type Invoice struct {
	InvoiceNumber     string          `json:"invoice_number"`
	InternalReference string          `json:"internal_reference,omitempty"`
	InvoiceDate       time.Time       `json:"invoice_date"`
	DeliveryDate      time.Time       `json:"delivery_date"`
	Net               decimal.Decimal `json:"net"`
	VATRate           decimal.Decimal `json:"vat_rate"`
	FinalAmount       decimal.Decimal `json:"final_amount"`
	Currency          string          `json:"currency"`
	TransactionType   string          `json:"transaction_type"`
	BillingAddress    string          `json:"billing_address"`
}

// Validate reports whether the invoice is in the accepted currency.
func (i Invoice) Validate() bool {
	return i.Currency == AcceptedCurrency
}

// ResolvedNumber is the number shown to humans: the internal reference when set.
func (i Invoice) ResolvedNumber() string {
	if ref := strings.TrimSpace(i.InternalReference); ref != "" {
		return ref
	}
	return i.InvoiceNumber
}

// Prefix returns the part of the resolved number before the first separator.
func (i Invoice) Prefix() (string, error) {
	n := i.ResolvedNumber()
	idx := strings.Index(n, InvoiceNumberSeparator)
	if idx <= 0 {
		return "", fmt.Errorf("%w: %q", ErrMalformedInvoiceNumber, n)
	}
	return n[:idx], nil
}

// MonthYear is the attachment sub folder, e.g. "03-2024".
func (i Invoice) MonthYear() string {
	return i.InvoiceDate.Format("01-2006")
}

// AttachmentPath resolves <prefix root>/<MM-YYYY>/<invoice number>.pdf.
func (i Invoice) AttachmentPath(ctx context.Context, r PrefixResolver) (string, error) {
	prefix, err := i.Prefix()
	if err != nil {
		return "", err
	}
	root, err := r.PrefixPath(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrPrefixNotConfigured, prefix, err)
	}
	if root == "" {
		return "", fmt.Errorf("%w: %s", ErrPrefixNotConfigured, prefix)
	}
	return filepath.Join(root, i.MonthYear(), i.InvoiceNumber+AttachmentExt), nil
}

func (i Invoice) VoucherDate() string  { return i.InvoiceDate.Format(DateLayout) }
func (i Invoice) ShippingDate() string { return i.DeliveryDate.Format(DateLayout) }

// TaxAmount is net minus final amount, sign preserved. It mirrors how the export
// books the total and is only the VAT share when net exceeds the final amount.
func (i Invoice) TaxAmount() decimal.Decimal {
	return i.Net.Sub(i.FinalAmount)
}

func (i Invoice) IsBusinessToBusiness() bool {
	return strings.EqualFold(strings.TrimSpace(i.TransactionType), TransactionTypeB2B)
}
