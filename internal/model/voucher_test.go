package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVoucherRequest(t *testing.T) {
	inv := Invoice{
		InvoiceNumber:     "RE-5",
		InternalReference: "INT-5",
		InvoiceDate:       time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		DeliveryDate:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Net:               decimal.RequireFromString("119.00"),
		VATRate:           decimal.RequireFromString("19"),
		FinalAmount:       decimal.RequireFromString("100.00"),
		Currency:          "EUR",
		TransactionType:   "B2B",
	}

	req := NewVoucherRequest(inv, "contact-1")

	assert.Equal(t, VoucherTypeSalesInvoice, req.Type)
	assert.Equal(t, "RE-5", req.VoucherNumber)
	assert.Equal(t, "2024-02-29", req.VoucherDate)
	assert.Equal(t, "2024-03-01", req.ShippingDate)
	assert.Equal(t, TaxTypeNet, req.TaxType)
	assert.Equal(t, "contact-1", req.ContactID)
	assert.True(t, req.TotalGrossAmount.Equal(decimal.RequireFromString("100")))
	assert.True(t, req.TotalTaxAmount.Equal(decimal.RequireFromString("19")))

	require.Len(t, req.VoucherItems, 1)
	item := req.VoucherItems[0]
	assert.True(t, item.Amount.Equal(req.TotalGrossAmount.Decimal))
	assert.True(t, item.TaxAmount.Equal(req.TotalTaxAmount.Decimal))
	assert.True(t, item.TaxRatePercent.Equal(decimal.NewFromInt(19)))
	assert.Equal(t, CategoryIntraCommunitySupply, item.CategoryID)
}

func TestNewVoucherRequest_GrossAndNegativeTax(t *testing.T) {
	inv := Invoice{
		InvoiceNumber: "RE-6",
		Net:           decimal.RequireFromString("100.00"),
		FinalAmount:   decimal.RequireFromString("119.00"),
	}

	req := NewVoucherRequest(inv, "c")

	assert.Equal(t, TaxTypeGross, req.TaxType)
	assert.True(t, req.TotalTaxAmount.Equal(decimal.RequireFromString("-19.00")))
}

func TestVoucherRequest_JSON(t *testing.T) {
	inv := Invoice{
		InvoiceNumber: "RE-7",
		InvoiceDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		DeliveryDate:  time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
		Net:           decimal.RequireFromString("119.50"),
		VATRate:       decimal.RequireFromString("19"),
		FinalAmount:   decimal.RequireFromString("100.25"),
	}

	b, err := json.Marshal(NewVoucherRequest(inv, "c-1"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, 100.25, raw["totalGrossAmount"])
	assert.Equal(t, 19.25, raw["totalTaxAmount"])
	assert.Equal(t, "salesinvoice", raw["type"])
	_, hasDue := raw["dueDate"]
	assert.False(t, hasDue)

	var back VoucherRequest
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.TotalTaxAmount.Equal(decimal.RequireFromString("19.25")))
}

func TestRemoteError_Text(t *testing.T) {
	assert.Equal(t, "bad", RemoteError{Error: "bad", Message: "other"}.Text())
	assert.Equal(t, "other", RemoteError{Message: "other"}.Text())
	assert.Empty(t, RemoteError{}.Text())
}
