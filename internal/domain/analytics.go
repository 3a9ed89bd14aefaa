package domain

import "github.com/shopspring/decimal"

// SalesSummary aggregates SALE transactions for the current day and month
type SalesSummary struct {
	OrdersToday  int             `json:"orders_today"`
	OrdersMonth  int             `json:"orders_month"`
	RevenueToday decimal.Decimal `json:"revenue_today"`
	RevenueMonth decimal.Decimal `json:"revenue_month"`
}

// ProductSales is the sold quantity of one product over a period
type ProductSales struct {
	Product   Product `json:"product"`
	SoldCount int     `json:"sold_count"`
}
