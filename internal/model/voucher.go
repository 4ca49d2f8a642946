package model

import (
	"github.com/shopspring/decimal"
)

const (
	VoucherTypeSalesInvoice = "salesinvoice"
	TaxTypeNet              = "net"
	TaxTypeGross            = "gross"
	FileTypeVoucher         = "voucher"

	// CategoryIntraCommunitySupply is the booking category for intra-community supplies.
	CategoryIntraCommunitySupply = "9075a4e3-66de-4795-a016-3889feca0d20"
)

// Amount is a decimal that travels as a bare JSON number, never as a float.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	return a.Decimal.UnmarshalJSON(b)
}

// VoucherRequest is the body of POST /vouchers.
type VoucherRequest struct {
	Type             string        `json:"type"`
	VoucherNumber    string        `json:"voucherNumber"`
	VoucherDate      string        `json:"voucherDate"`
	ShippingDate     string        `json:"shippingDate,omitempty"`
	TotalGrossAmount Amount        `json:"totalGrossAmount"`
	TotalTaxAmount   Amount        `json:"totalTaxAmount"`
	TaxType          string        `json:"taxType"`
	ContactID        string        `json:"contactId"`
	VoucherItems     []VoucherItem `json:"voucherItems"`
}

// VoucherItem is a single booking line of a voucher.
type VoucherItem struct {
	Amount         Amount `json:"amount"`
	TaxAmount      Amount `json:"taxAmount"`
	TaxRatePercent Amount `json:"taxRatePercent"`
	CategoryID     string `json:"categoryId"`
}

// VoucherCreated is the success response of POST /vouchers.
type VoucherCreated struct {
	ID          string `json:"id"`
	ResourceURI string `json:"resourceUri,omitempty"`
	Version     int    `json:"version,omitempty"`
}

// RemoteError is the error body the voucher service returns on rejection.
type RemoteError struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Text returns the most specific message the remote sent.
func (e RemoteError) Text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// NewVoucherRequest builds the sales-invoice voucher for inv, booked against contactID.
// The due date is left for the remote to derive.
func NewVoucherRequest(inv Invoice, contactID string) VoucherRequest {
	gross := NewAmount(inv.FinalAmount)
	tax := NewAmount(inv.TaxAmount())

	taxType := TaxTypeGross
	if inv.IsBusinessToBusiness() {
		taxType = TaxTypeNet
	}

	return VoucherRequest{
		Type:             VoucherTypeSalesInvoice,
		VoucherNumber:    inv.InvoiceNumber,
		VoucherDate:      inv.VoucherDate(),
		ShippingDate:     inv.ShippingDate(),
		TotalGrossAmount: gross,
		TotalTaxAmount:   tax,
		TaxType:          taxType,
		ContactID:        contactID,
		VoucherItems: []VoucherItem{{
			Amount:         gross,
			TaxAmount:      tax,
			TaxRatePercent: NewAmount(inv.VATRate),
			CategoryID:     CategoryIntraCommunitySupply,
		}},
	}
}
