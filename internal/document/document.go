// Package document maps internal invoices into the canonical regulatory
// document shape and serializes it for submission.
package document

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrentVersion is the document version submitted to the authority.
const CurrentVersion = "1.0"

// Input is everything the builder needs: the source invoice plus resolved
// supplier and buyer party records.
type Input struct {
	Type     Type
	Invoice  Invoice
	Supplier PartyInput
	Buyer    PartyInput
}

// Invoice is the internal invoice as supplied by the surrounding ERP.
type Invoice struct {
	CodeNumber string
	IssueDate  time.Time
	Currency   string
	Lines      []LineInput

	// Recurring invoices carry a billing period.
	Recurring *RecurringTerms

	// Corrective documents reference the authority uuid of the document
	// they amend.
	OriginalAuthorityUUID string
}

// LineInput is one invoice line before regulatory mapping.
type LineInput struct {
	Classification     string
	Description        string
	Quantity           decimal.Decimal
	UnitCode           string
	UnitPrice          decimal.Decimal
	DiscountAmount     decimal.Decimal
	TaxType            string
	TaxRate            decimal.Decimal
	TaxExemptionReason string
}

// RecurringTerms describes the billing period of a recurring invoice.
type RecurringTerms struct {
	Start     time.Time
	End       time.Time
	Frequency string
}

// PartyInput is a resolved supplier or buyer record.
type PartyInput struct {
	Name             string
	TIN              string
	BRN              string
	MSIC             string
	BusinessActivity string
	AddressLines     []string
	City             string
	PostalCode       string
	State            string
	Country          string
	Phone            string
	Email            string

	// Category drives placeholder TIN selection for buyers without one.
	Category BuyerCategory
}

// Document is the canonical regulatory document. Field order is the wire key
// order; the encoder relies on it for byte-stable output.
type Document struct {
	Version      string         `json:"version"`
	TypeCode     string         `json:"typeCode"`
	CodeNumber   string         `json:"codeNumber"`
	IssueDate    string         `json:"issueDate"`
	IssueTime    string         `json:"issueTime"`
	Currency     string         `json:"currency"`
	OriginalUUID string         `json:"originalUuid,omitempty"`
	Supplier     Party          `json:"supplier"`
	Buyer        Party          `json:"buyer"`
	Lines        []Line         `json:"lines"`
	Totals       Totals         `json:"totals"`
	Period       *BillingPeriod `json:"billingPeriod,omitempty"`
}

type Party struct {
	Name             string  `json:"name"`
	TIN              string  `json:"tin"`
	BRN              string  `json:"brn,omitempty"`
	MSIC             string  `json:"msic,omitempty"`
	BusinessActivity string  `json:"businessActivity,omitempty"`
	Address          Address `json:"address"`
	Phone            string  `json:"phone"`
	Email            string  `json:"email,omitempty"`
}

type Address struct {
	Lines      []string `json:"lines"`
	City       string   `json:"city"`
	PostalCode string   `json:"postalCode,omitempty"`
	State      string   `json:"state"`
	Country    string   `json:"country"`
}

// Line carries fixed 2-decimal string amounts on the wire.
type Line struct {
	Number          int    `json:"number"`
	Classification  string `json:"classification"`
	Description     string `json:"description"`
	Quantity        string `json:"quantity"`
	UnitCode        string `json:"unitCode"`
	UnitPrice       string `json:"unitPrice"`
	Subtotal        string `json:"subtotal"`
	Discount        string `json:"discount,omitempty"`
	TaxType         string `json:"taxType"`
	TaxRate         string `json:"taxRate"`
	TaxAmount       string `json:"taxAmount"`
	ExemptionReason string `json:"exemptionReason,omitempty"`
	Total           string `json:"total"`
}

type Totals struct {
	TotalExcludingTax string `json:"totalExcludingTax"`
	TotalDiscount     string `json:"totalDiscount"`
	TotalTax          string `json:"totalTax"`
	TotalIncludingTax string `json:"totalIncludingTax"`
	TotalPayable      string `json:"totalPayable"`
}

type BillingPeriod struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Frequency string `json:"frequency"`
}
