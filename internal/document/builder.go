package document

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationError describes one unmet mandatory-field rule.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	CodeRequired = "required"
	CodeInvalid  = "invalid"
)

// Build maps an internal invoice and its parties into the canonical document.
// It returns either a complete document or a non-empty list of validation
// errors, never a partial document. Pure: no network or state access.
func Build(in Input) (*Document, []ValidationError) {
	v := &validator{}

	if !in.Type.Valid() {
		v.invalid("documentType", fmt.Sprintf("unknown document type %q", in.Type))
	}
	v.require("codeNumber", in.Invoice.CodeNumber)
	v.require("currency", in.Invoice.Currency)
	if in.Invoice.IssueDate.IsZero() {
		v.missing("issueDate")
	}
	if in.Type.Corrective() && strings.TrimSpace(in.Invoice.OriginalAuthorityUUID) == "" {
		v.add(CodeRequired, "originalUuid", "corrective documents must reference the original document uuid")
	}

	supplier := buildSupplier(in.Supplier, v)
	buyer := buildBuyer(in.Buyer, in.Type, v)

	if len(in.Invoice.Lines) == 0 {
		v.add(CodeRequired, "lines", "at least one line item is required")
	}

	lines := make([]Line, 0, len(in.Invoice.Lines))
	totalExclTax := decimal.Zero
	totalDiscount := decimal.Zero
	totalTax := decimal.Zero
	for i, li := range in.Invoice.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		v.require(field+".classification", li.Classification)
		v.require(field+".unitCode", li.UnitCode)
		v.require(field+".description", li.Description)
		if !li.Quantity.IsPositive() {
			v.add(CodeInvalid, field+".quantity", "quantity must be positive")
		}
		if li.TaxType == "E" && strings.TrimSpace(li.TaxExemptionReason) == "" {
			v.add(CodeRequired, field+".taxExemptionReason", "exempt lines must state an exemption reason")
		}

		// Unrounded line arithmetic; rounding happens once at the totals.
		subtotal := li.Quantity.Mul(li.UnitPrice)
		taxable := subtotal.Sub(li.DiscountAmount)
		tax := taxable.Mul(li.TaxRate).Div(decimal.NewFromInt(100))

		totalExclTax = totalExclTax.Add(taxable)
		totalDiscount = totalDiscount.Add(li.DiscountAmount)
		totalTax = totalTax.Add(tax)

		lines = append(lines, Line{
			Number:          i + 1,
			Classification:  li.Classification,
			Description:     li.Description,
			Quantity:        li.Quantity.String(),
			UnitCode:        li.UnitCode,
			UnitPrice:       li.UnitPrice.StringFixed(2),
			Subtotal:        subtotal.StringFixed(2),
			Discount:        discountString(li.DiscountAmount),
			TaxType:         li.TaxType,
			TaxRate:         li.TaxRate.StringFixed(2),
			TaxAmount:       tax.StringFixed(2),
			ExemptionReason: li.TaxExemptionReason,
			Total:           taxable.Add(tax).StringFixed(2),
		})
	}

	var period *BillingPeriod
	if r := in.Invoice.Recurring; r != nil {
		if r.Start.IsZero() || r.End.IsZero() {
			v.add(CodeRequired, "billingPeriod", "recurring invoices must carry a start and end date")
		}
		v.require("billingPeriod.frequency", r.Frequency)
		period = &BillingPeriod{
			Start:     r.Start.Format("2006-01-02"),
			End:       r.End.Format("2006-01-02"),
			Frequency: r.Frequency,
		}
	}

	if errs := v.errs; len(errs) > 0 {
		return nil, errs
	}

	// Single rounding pass at the document-total level so the stated totals
	// cannot drift from the line sum by accumulated cent rounding.
	totalExclTax = totalExclTax.Round(2)
	totalDiscount = totalDiscount.Round(2)
	totalTax = totalTax.Round(2)
	totalInclTax := totalExclTax.Add(totalTax)

	issueDate := in.Invoice.IssueDate.UTC()
	return &Document{
		Version:      CurrentVersion,
		TypeCode:     in.Type.Code(),
		CodeNumber:   in.Invoice.CodeNumber,
		IssueDate:    issueDate.Format("2006-01-02"),
		IssueTime:    issueDate.Format("15:04:05Z"),
		Currency:     in.Invoice.Currency,
		OriginalUUID: in.Invoice.OriginalAuthorityUUID,
		Supplier:     supplier,
		Buyer:        buyer,
		Lines:        lines,
		Totals: Totals{
			TotalExcludingTax: totalExclTax.StringFixed(2),
			TotalDiscount:     totalDiscount.StringFixed(2),
			TotalTax:          totalTax.StringFixed(2),
			TotalIncludingTax: totalInclTax.StringFixed(2),
			TotalPayable:      totalInclTax.StringFixed(2),
		},
		Period: period,
	}, nil
}

func buildSupplier(p PartyInput, v *validator) Party {
	v.require("supplier.name", p.Name)
	v.require("supplier.tin", p.TIN)
	v.require("supplier.brn", p.BRN)
	v.require("supplier.msic", p.MSIC)
	v.require("supplier.phone", p.Phone)
	addr := buildAddress("supplier", p, v)

	return Party{
		Name:             p.Name,
		TIN:              p.TIN,
		BRN:              p.BRN,
		MSIC:             p.MSIC,
		BusinessActivity: p.BusinessActivity,
		Address:          addr,
		Phone:            p.Phone,
		Email:            p.Email,
	}
}

func buildBuyer(p PartyInput, docType Type, v *validator) Party {
	v.require("buyer.name", p.Name)
	v.require("buyer.phone", p.Phone)
	addr := buildAddress("buyer", p, v)

	tin := strings.TrimSpace(p.TIN)
	if tin == "" {
		category := p.Category
		if docType == TypeSelfBilledInvoice && category == BuyerCategoryStandard {
			category = BuyerCategoryForeignSupplier
		}
		tin = PlaceholderTIN(category)
		if tin == "" {
			v.add(CodeRequired, "buyer.tin", "buyer has no TIN and no placeholder category")
		}
	}

	return Party{
		Name:    p.Name,
		TIN:     tin,
		BRN:     p.BRN,
		Address: addr,
		Phone:   p.Phone,
		Email:   p.Email,
	}
}

func buildAddress(prefix string, p PartyInput, v *validator) Address {
	if len(p.AddressLines) == 0 {
		v.missing(prefix + ".address.lines")
	}
	v.require(prefix+".address.city", p.City)
	v.require(prefix+".address.state", p.State)
	v.require(prefix+".address.country", p.Country)

	return Address{
		Lines:      p.AddressLines,
		City:       p.City,
		PostalCode: p.PostalCode,
		State:      p.State,
		Country:    p.Country,
	}
}

func discountString(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}

type validator struct {
	errs []ValidationError
}

func (v *validator) add(code, field, message string) {
	v.errs = append(v.errs, ValidationError{Code: code, Field: field, Message: message})
}

func (v *validator) missing(field string) {
	v.add(CodeRequired, field, field+" is required")
}

func (v *validator) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.missing(field)
	}
}

func (v *validator) invalid(field, message string) {
	v.add(CodeInvalid, field, message)
}
