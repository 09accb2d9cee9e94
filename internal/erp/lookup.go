package erp

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invois/internal/document"
	"github.com/smallbiznis/invois/internal/submission/domain"
	"gorm.io/gorm"
)

type invoiceLookup struct {
	db *gorm.DB
}

// NewInvoiceLookup returns the gorm-backed invoice resolver.
func NewInvoiceLookup(db *gorm.DB) domain.InvoiceLookup {
	return &invoiceLookup{db: db}
}

func (l *invoiceLookup) Lookup(ctx context.Context, tenantID, invoiceID snowflake.ID) (domain.SourceInvoice, error) {
	var invoice Invoice
	err := l.db.WithContext(ctx).
		Preload("Lines").
		Preload("Supplier").
		Preload("Buyer").
		First(&invoice, "id = ? AND tenant_id = ?", invoiceID, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.SourceInvoice{}, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return domain.SourceInvoice{}, err
	}

	src := domain.SourceInvoice{
		ID: invoice.ID,
		Invoice: document.Invoice{
			CodeNumber: invoice.CodeNumber,
			IssueDate:  invoice.IssueDate,
			Currency:   invoice.Currency,
			Lines:      mapLines(invoice.Lines),
		},
	}
	if invoice.RecurringStart != nil && invoice.RecurringEnd != nil {
		src.Invoice.Recurring = &document.RecurringTerms{
			Start:     *invoice.RecurringStart,
			End:       *invoice.RecurringEnd,
			Frequency: invoice.RecurringFrequency,
		}
	}
	if invoice.Supplier != nil {
		src.Supplier = mapParty(*invoice.Supplier)
	}
	if invoice.Buyer != nil {
		src.Buyer = mapParty(*invoice.Buyer)
	}
	return src, nil
}

func mapLines(lines []InvoiceLine) []document.LineInput {
	sort.Slice(lines, func(i, j int) bool { return lines[i].Number < lines[j].Number })

	out := make([]document.LineInput, 0, len(lines))
	for _, li := range lines {
		out = append(out, document.LineInput{
			Classification:     li.Classification,
			Description:        li.Description,
			Quantity:           li.Quantity,
			UnitCode:           li.UnitCode,
			UnitPrice:          li.UnitPrice,
			DiscountAmount:     li.DiscountAmount,
			TaxType:            li.TaxType,
			TaxRate:            li.TaxRate,
			TaxExemptionReason: li.TaxExemptionReason,
		})
	}
	return out
}

func mapParty(p Party) document.PartyInput {
	var addressLines []string
	if len(p.AddressLines) > 0 {
		_ = json.Unmarshal(p.AddressLines, &addressLines)
	}
	return document.PartyInput{
		Name:             p.Name,
		TIN:              p.TIN,
		BRN:              p.BRN,
		MSIC:             p.MSIC,
		BusinessActivity: p.BusinessActivity,
		AddressLines:     addressLines,
		City:             p.City,
		PostalCode:       p.PostalCode,
		State:            p.State,
		Country:          p.Country,
		Phone:            p.Phone,
		Email:            p.Email,
		Category:         document.BuyerCategory(p.Category),
	}
}
