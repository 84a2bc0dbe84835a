package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	codeAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength       = 10
	codeAttempts     = 5
	dashboardTopN    = 5
	dashboardRecentN = 10
	dashboardIdleN   = 5
	defaultPeriod    = "week"
	dayLabelLayout   = "2006-01-02"
	monthLabelLayout = "2006-01"
)

// AdminService handles vendor management and marketplace analytics
type AdminService struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewAdminService creates a new admin service
func NewAdminService(store *store.Store) *AdminService {
	return &AdminService{
		store:  store,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// VendorRequest creates or edits a vendor account
type VendorRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Email       string  `json:"email" validate:"required,email,max=120"`
	CategoryIDs []int64 `json:"category_ids" validate:"required,min=1,dive,gt=0"`
	IsActive    *bool   `json:"is_active"`
}

// generateCode draws an activation code from crypto/rand
func generateCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate activation code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func (as *AdminService) uniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		taken, err := as.store.UniqueCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", models.NewError(models.KindConflict, "could not allocate a unique activation code")
}

// resolveCategories checks that every id names an existing category
func (as *AdminService) resolveCategories(ctx context.Context, ids []int64) ([]models.Category, error) {
	seen := make(map[int64]bool, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	categories, err := as.store.GetCategoriesByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	if len(categories) != len(unique) {
		return nil, models.NewError(models.KindValidation, "invalid request: unknown category in category_ids")
	}
	return categories, nil
}

func categoryIDs(categories []models.Category) []int64 {
	ids := make([]int64, len(categories))
	for i, c := range categories {
		ids[i] = c.ID
	}
	return ids
}

// CreateVendor invites a vendor. The account starts inactive without a password and carries a fresh
// activation code. The account and its category assignment commit together.
func (as *AdminService) CreateVendor(ctx context.Context, p models.Principal, req VendorRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.CreateVendor")
	defer span.End()

	if err := p.Require(models.CapManageVendors); err != nil {
		return nil, err
	}
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	categories, err := as.resolveCategories(ctx, req.CategoryIDs)
	if err != nil {
		return nil, err
	}
	taken, err := as.store.EmailTaken(ctx, req.Email, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewError(models.KindConflict, "email already registered")
	}
	code, err := as.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	vendor := &models.User{
		Name:       req.Name,
		Email:      req.Email,
		Role:       models.RoleSuperAdmin,
		UniqueCode: &code,
		IsActive:   false,
	}
	err = as.store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.CreateUser(ctx, vendor); err != nil {
			return err
		}
		return tx.SetVendorCategories(ctx, vendor.ID, categoryIDs(categories))
	})
	if err != nil {
		return nil, err
	}
	vendor.Categories = categories

	as.logger.Info("Vendor invited",
		zap.String("vendor_id", vendor.ID.String()),
		zap.Int("categories", len(categories)))
	return vendor, nil
}

// ListVendors returns every vendor with assigned categories
func (as *AdminService) ListVendors(ctx context.Context, p models.Principal) ([]models.User, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.ListVendors")
	defer span.End()

	if err := p.Require(models.CapManageVendors); err != nil {
		return nil, err
	}
	vendors, err := as.store.ListUsersByRole(ctx, models.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}
	for i := range vendors {
		if vendors[i].Categories, err = as.store.GetVendorCategories(ctx, vendors[i].ID); err != nil {
			return nil, err
		}
	}
	return vendors, nil
}

// GetVendor returns one vendor with assigned categories
func (as *AdminService) GetVendor(ctx context.Context, p models.Principal, id uuid.UUID) (*models.User, error) {
	if err := p.Require(models.CapManageVendors); err != nil {
		return nil, err
	}
	return as.vendor(ctx, id)
}

func (as *AdminService) vendor(ctx context.Context, id uuid.UUID) (*models.User, error) {
	vendor, err := as.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if vendor.Role != models.RoleSuperAdmin {
		return nil, models.NewError(models.KindNotFound, "vendor not found: %s", id)
	}
	if vendor.Categories, err = as.store.GetVendorCategories(ctx, id); err != nil {
		return nil, err
	}
	return vendor, nil
}

// ToggleVendor flips the active flag of a vendor who completed registration.
// The vendor's products stay in the catalog either way.
func (as *AdminService) ToggleVendor(ctx context.Context, p models.Principal, id uuid.UUID) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.ToggleVendor")
	defer span.End()

	if err := p.Require(models.CapManageVendors); err != nil {
		return nil, err
	}
	vendor, err := as.vendor(ctx, id)
	if err != nil {
		return nil, err
	}
	if !vendor.Registered() {
		return nil, models.NewError(models.KindValidation, "vendor has not completed registration")
	}

	vendor.IsActive = !vendor.IsActive
	if err := as.store.UpdateUser(ctx, vendor); err != nil {
		return nil, err
	}
	as.logger.Info("Vendor toggled",
		zap.String("vendor_id", id.String()),
		zap.Bool("active", vendor.IsActive))
	return vendor, nil
}

// UpdateVendor edits a vendor's name, email, active flag and category set. A category that still
// holds active products of the vendor cannot be removed.
func (as *AdminService) UpdateVendor(ctx context.Context, p models.Principal, id uuid.UUID, req VendorRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.UpdateVendor")
	defer span.End()

	if err := p.Require(models.CapManageVendors); err != nil {
		return nil, err
	}
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	vendor, err := as.vendor(ctx, id)
	if err != nil {
		return nil, err
	}
	categories, err := as.resolveCategories(ctx, req.CategoryIDs)
	if err != nil {
		return nil, err
	}

	taken, err := as.store.EmailTaken(ctx, req.Email, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewError(models.KindConflict, "email already registered")
	}

	keep := make(map[int64]bool, len(categories))
	for _, c := range categories {
		keep[c.ID] = true
	}
	for _, current := range vendor.Categories {
		if keep[current.ID] {
			continue
		}
		n, err := as.store.CountActiveProductsInCategory(ctx, id, current.ID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, models.NewError(models.KindConflict,
				"vendor still has %d active products in %s", n, current.Name)
		}
	}

	vendor.Name = req.Name
	vendor.Email = req.Email
	if req.IsActive != nil {
		if *req.IsActive && !vendor.Registered() {
			return nil, models.NewError(models.KindValidation, "vendor has not completed registration")
		}
		vendor.IsActive = *req.IsActive
	}
	err = as.store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.UpdateUser(ctx, vendor); err != nil {
			return err
		}
		return tx.SetVendorCategories(ctx, id, categoryIDs(categories))
	})
	if err != nil {
		return nil, err
	}
	vendor.Categories = categories
	return vendor, nil
}

// DeleteVendor removes a vendor that owns no products
func (as *AdminService) DeleteVendor(ctx context.Context, p models.Principal, id uuid.UUID) error {
	ctx, span := util.StartSpan(ctx, "AdminService.DeleteVendor")
	defer span.End()

	if err := p.Require(models.CapManageVendors); err != nil {
		return err
	}
	if _, err := as.vendor(ctx, id); err != nil {
		return err
	}
	n, err := as.store.CountProductsByOwner(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return models.NewError(models.KindConflict, "vendor owns %d products", n)
	}
	if err := as.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	as.logger.Info("Vendor deleted", zap.String("vendor_id", id.String()))
	return nil
}

// Dashboard aggregates marketplace-wide figures. period is week, month or year.
func (as *AdminService) Dashboard(ctx context.Context, p models.Principal, period string) (*models.AdminDashboard, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.Dashboard")
	defer span.End()

	if err := p.Require(models.CapViewAnalytics); err != nil {
		return nil, err
	}
	if period == "" {
		period = defaultPeriod
	}
	buckets, err := revenueBuckets(period, as.now())
	if err != nil {
		return nil, err
	}

	d := models.AdminDashboard{Period: period}
	if d.TotalOrders, err = as.store.CountOrders(ctx); err != nil {
		return nil, err
	}
	if d.TotalRevenue, err = as.store.SumOrderTotals(ctx); err != nil {
		return nil, err
	}
	if d.TotalCustomers, err = as.store.CountUsersByRole(ctx, models.RoleCustomer); err != nil {
		return nil, err
	}
	if d.TotalVendors, err = as.store.CountUsersByRole(ctx, models.RoleSuperAdmin); err != nil {
		return nil, err
	}

	payments, err := as.store.GetPaidPaymentsSince(ctx, buckets[0].Start)
	if err != nil {
		return nil, err
	}
	d.Revenue = fillRevenue(period, buckets, payments)

	if d.TopProducts, err = as.store.GetTopProductsByQuantity(ctx, dashboardTopN); err != nil {
		return nil, err
	}
	if d.NotSelling, err = as.store.GetNotSellingProducts(ctx, dashboardIdleN); err != nil {
		return nil, err
	}
	if d.CategoryDistribution, err = as.store.GetCategoryDistribution(ctx, uuid.Nil); err != nil {
		return nil, err
	}
	if d.RecentOrders, err = as.store.GetRecentOrders(ctx, dashboardRecentN); err != nil {
		return nil, err
	}
	return &d, nil
}

// revenueBuckets lays out empty buckets ending at now: 7 or 30 days, or 12 months
func revenueBuckets(period string, now time.Time) ([]models.RevenuePoint, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var days int
	switch period {
	case "week":
		days = 7
	case "month":
		days = 30
	case "year":
		firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		buckets := make([]models.RevenuePoint, 12)
		for i := range buckets {
			start := firstOfMonth.AddDate(0, i-11, 0)
			buckets[i] = models.RevenuePoint{Label: start.Format(monthLabelLayout), Start: start, Revenue: decimal.Zero}
		}
		return buckets, nil
	default:
		return nil, models.NewError(models.KindValidation, "unknown period %q", period)
	}

	buckets := make([]models.RevenuePoint, days)
	for i := range buckets {
		start := today.AddDate(0, 0, i-(days-1))
		buckets[i] = models.RevenuePoint{Label: start.Format(dayLabelLayout), Start: start, Revenue: decimal.Zero}
	}
	return buckets, nil
}

// fillRevenue sums paid payments into their day or month bucket
func fillRevenue(period string, buckets []models.RevenuePoint, payments []models.Payment) []models.RevenuePoint {
	layout := dayLabelLayout
	if period == "year" {
		layout = monthLabelLayout
	}
	index := make(map[string]int, len(buckets))
	for i, b := range buckets {
		index[b.Label] = i
	}
	for _, pay := range payments {
		if pay.PaymentStatus != models.PaymentStatusPaid {
			continue
		}
		if i, ok := index[pay.CreatedAt.UTC().Format(layout)]; ok {
			buckets[i].Revenue = buckets[i].Revenue.Add(pay.Amount)
		}
	}
	return buckets
}
