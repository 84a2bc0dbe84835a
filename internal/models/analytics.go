package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductSales is a product with the quantity sold across all order items
type ProductSales struct {
	ProductID int64  `db:"product_id" json:"product_id"`
	Name      string `db:"name" json:"name"`
	TotalSold int    `db:"total_sold" json:"total_sold"`
}

// CategoryCount is the number of products in a category
type CategoryCount struct {
	Name  string `db:"name" json:"name"`
	Count int    `db:"product_count" json:"count"`
}

// RevenuePoint is the paid revenue of one period bucket
type RevenuePoint struct {
	Label   string          `json:"label"`
	Start   time.Time       `json:"start"`
	Revenue decimal.Decimal `json:"revenue"`
}

// AdminDashboard aggregates marketplace-wide figures
type AdminDashboard struct {
	TotalOrders          int             `json:"total_orders"`
	TotalRevenue         decimal.Decimal `json:"total_revenue"`
	TotalCustomers       int             `json:"total_customers"`
	TotalVendors         int             `json:"total_vendors"`
	Period               string          `json:"period"`
	Revenue              []RevenuePoint  `json:"revenue"`
	TopProducts          []ProductSales  `json:"top_products"`
	NotSelling           []Product       `json:"not_selling"`
	CategoryDistribution []CategoryCount `json:"category_distribution"`
	RecentOrders         []Order         `json:"recent_orders"`
}

// VendorDashboard aggregates one vendor's figures
type VendorDashboard struct {
	ProductCount         int             `json:"product_count"`
	OrderCount           int             `json:"order_count"`
	Revenue              decimal.Decimal `json:"revenue"`
	LowStock             []Product       `json:"low_stock"`
	TopSelling           []Product       `json:"top_selling"`
	CategoryDistribution []CategoryCount `json:"category_distribution"`
}
