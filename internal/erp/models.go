// Package erp is the read-only view of the surrounding ERP's invoices and
// parties. Submission never mutates these tables.
package erp

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Party is a supplier or buyer master record.
type Party struct {
	ID               snowflake.ID   `gorm:"primaryKey" json:"id"`
	TenantID         snowflake.ID   `gorm:"not null;index" json:"tenantId"`
	Name             string         `gorm:"type:text;not null" json:"name"`
	TIN              string         `gorm:"type:text" json:"tin"`
	BRN              string         `gorm:"type:text" json:"brn"`
	MSIC             string         `gorm:"type:text" json:"msic"`
	BusinessActivity string         `gorm:"type:text" json:"businessActivity"`
	AddressLines     datatypes.JSON `gorm:"type:jsonb" json:"addressLines"`
	City             string         `gorm:"type:text" json:"city"`
	PostalCode       string         `gorm:"type:text" json:"postalCode"`
	State            string         `gorm:"type:text" json:"state"`
	Country          string         `gorm:"type:text" json:"country"`
	Phone            string         `gorm:"type:text" json:"phone"`
	Email            string         `gorm:"type:text" json:"email"`
	Category         string         `gorm:"type:text" json:"category"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName sets the database table name.
func (Party) TableName() string { return "parties" }

// Invoice is the ERP-side invoice header.
type Invoice struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID   snowflake.ID `gorm:"not null;index" json:"tenantId"`
	CodeNumber string       `gorm:"type:text;not null;uniqueIndex:ux_invoice_tenant_code,priority:2" json:"codeNumber"`
	IssueDate  time.Time    `gorm:"not null" json:"issueDate"`
	Currency   string       `gorm:"type:text;not null" json:"currency"`

	SupplierID snowflake.ID `gorm:"not null" json:"supplierId"`
	BuyerID    snowflake.ID `gorm:"not null" json:"buyerId"`
	Supplier   *Party       `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	Buyer      *Party       `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`

	RecurringStart     *time.Time `json:"recurringStart,omitempty"`
	RecurringEnd       *time.Time `json:"recurringEnd,omitempty"`
	RecurringFrequency string     `gorm:"type:text" json:"recurringFrequency,omitempty"`

	Lines []InvoiceLine `gorm:"foreignKey:InvoiceID" json:"lines,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceLine is one ERP-side invoice line.
type InvoiceLine struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID          snowflake.ID    `gorm:"not null;index" json:"invoiceId"`
	Number             int             `gorm:"not null" json:"number"`
	Classification     string          `gorm:"type:text" json:"classification"`
	Description        string          `gorm:"type:text" json:"description"`
	Quantity           decimal.Decimal `gorm:"type:numeric;not null" json:"quantity"`
	UnitCode           string          `gorm:"type:text" json:"unitCode"`
	UnitPrice          decimal.Decimal `gorm:"type:numeric;not null" json:"unitPrice"`
	DiscountAmount     decimal.Decimal `gorm:"type:numeric" json:"discountAmount"`
	TaxType            string          `gorm:"type:text" json:"taxType"`
	TaxRate            decimal.Decimal `gorm:"type:numeric" json:"taxRate"`
	TaxExemptionReason string          `gorm:"type:text" json:"taxExemptionReason,omitempty"`
}

// TableName sets the database table name.
func (InvoiceLine) TableName() string { return "invoice_lines" }
