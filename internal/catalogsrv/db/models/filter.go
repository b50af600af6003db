package models

import (
	"github.com/shopspring/decimal"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
	"github.com/practiceops/servicecatalog/internal/common/uuid"
)

// ServiceFilter selects services. Zero fields do not filter. The null
// tenant disables tenant scoping. A nil IDs slice does not filter while a
// non-nil empty one matches nothing.
type ServiceFilter struct {
	TenantID        catcommon.TenantId
	IDs             []uuid.UUID
	Status          string
	Active          *bool
	Featured        *bool
	Category        *string
	CategoryNotNull bool
	PriceNotNull    bool
	Search          string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
}

// SearchColumns are matched by ServiceFilter.Search.
var SearchColumns = []string{ColName, ColSlug, ColDescription, ColShortDescription, ColCategory}

// SortColumns maps API sort keys to columns.
var SortColumns = map[string]string{
	"name":      ColName,
	"price":     ColPrice,
	"createdAt": ColCreatedAt,
	"updatedAt": ColUpdatedAt,
}

// ListOptions orders and pages a service listing. Limit zero means all rows.
type ListOptions struct {
	SortColumn string
	Desc       bool
	Limit      int
	Offset     int
}

// ServiceAggregates holds AVG and SUM over non-null prices.
type ServiceAggregates struct {
	AveragePrice decimal.NullDecimal
	TotalPrice   decimal.NullDecimal
}
