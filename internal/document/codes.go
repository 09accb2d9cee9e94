package document

// Type identifies the e-invoice document kind.
type Type string

const (
	TypeInvoice              Type = "invoice"
	TypeCreditNote           Type = "credit_note"
	TypeDebitNote            Type = "debit_note"
	TypeRefundNote           Type = "refund_note"
	TypeSelfBilledInvoice    Type = "self_billed_invoice"
	TypeSelfBilledCreditNote Type = "self_billed_credit_note"
	TypeSelfBilledDebitNote  Type = "self_billed_debit_note"
	TypeSelfBilledRefundNote Type = "self_billed_refund_note"
)

var typeCodes = map[Type]string{
	TypeInvoice:              "01",
	TypeCreditNote:           "02",
	TypeDebitNote:            "03",
	TypeRefundNote:           "04",
	TypeSelfBilledInvoice:    "11",
	TypeSelfBilledCreditNote: "12",
	TypeSelfBilledDebitNote:  "13",
	TypeSelfBilledRefundNote: "14",
}

// Code returns the authority document type code.
func (t Type) Code() string { return typeCodes[t] }

// Valid reports whether the type is a known document kind.
func (t Type) Valid() bool {
	_, ok := typeCodes[t]
	return ok
}

// Corrective reports whether the type must reference an earlier valid document.
func (t Type) Corrective() bool {
	switch t {
	case TypeCreditNote, TypeDebitNote, TypeRefundNote,
		TypeSelfBilledCreditNote, TypeSelfBilledDebitNote, TypeSelfBilledRefundNote:
		return true
	}
	return false
}

// BuyerCategory classifies a buyer without a TIN so the builder can select the
// mandated placeholder identifier.
type BuyerCategory string

const (
	BuyerCategoryStandard           BuyerCategory = "standard"
	BuyerCategoryResidentIndividual BuyerCategory = "resident_individual"
	BuyerCategoryForeignBuyer       BuyerCategory = "foreign_buyer"
	BuyerCategoryForeignSupplier    BuyerCategory = "foreign_supplier"
	BuyerCategoryGovernment         BuyerCategory = "government"
)

// Placeholder TINs published by the authority for buyers without one.
var placeholderTINs = map[BuyerCategory]string{
	BuyerCategoryResidentIndividual: "EI00000000010",
	BuyerCategoryForeignBuyer:       "EI00000000020",
	BuyerCategoryForeignSupplier:    "EI00000000030",
	BuyerCategoryGovernment:         "EI00000000040",
}

// PlaceholderTIN returns the placeholder identifier for a TIN-less buyer
// category, or "" when the category has none.
func PlaceholderTIN(category BuyerCategory) string {
	return placeholderTINs[category]
}

// Billing frequency values accepted for recurring invoices.
const (
	FrequencyDaily     = "daily"
	FrequencyWeekly    = "weekly"
	FrequencyFortnight = "fortnight"
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyYearly    = "yearly"
)
