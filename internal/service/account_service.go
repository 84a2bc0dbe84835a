package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace-service/internal/auth"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountService handles registration, login and profile updates
type AccountService struct {
	store  *store.Store
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(store *store.Store, tokens *auth.TokenManager) *AccountService {
	return &AccountService{
		store:  store,
		tokens: tokens,
		logger: util.GetLogger(),
	}
}

// RegisterRequest represents a customer sign-up
type RegisterRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=120"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// CodeRegistrationRequest completes a vendor invitation
type CodeRegistrationRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Code            string `json:"code" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// LoginResult is a signed session token with the account it belongs to
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// ProfileRequest edits the caller's own account
type ProfileRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=120"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterCustomer creates an active customer account
func (as *AccountService) RegisterCustomer(ctx context.Context, req RegisterRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.RegisterCustomer")
	defer span.End()

	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	taken, err := as.store.EmailTaken(ctx, req.Email, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewError(models.KindConflict, "email already registered")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleCustomer,
		IsActive:     true,
	}
	if err := as.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	as.logger.Info("Customer registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// RegisterWithCode completes a pending vendor invitation matched by email and activation code
// together. The code is single-use; an unmatched pair is never treated as a customer sign-up.
func (as *AccountService) RegisterWithCode(ctx context.Context, req CodeRegistrationRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.RegisterWithCode")
	defer span.End()

	req.Email = normalizeEmail(req.Email)
	req.Code = strings.TrimSpace(req.Code)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	ok, err := as.store.ActivateVendor(ctx, req.Email, req.Code, hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		as.logger.Warn("Vendor activation rejected", zap.String("email", req.Email))
		return nil, models.ErrInvalidCode
	}

	user, err := as.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	as.logger.Info("Vendor activated", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login checks the credentials of an active account and issues a session token
func (as *AccountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.Login")
	defer span.End()

	invalid := models.NewError(models.KindUnauthenticated, "invalid email or password")

	user, err := as.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if models.KindOf(err) == models.KindNotFound {
			return nil, invalid
		}
		return nil, err
	}
	if !user.IsActive || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, invalid
	}

	token, expiresAt, err := as.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// CheckActive rejects a session whose account was deactivated or removed after the token was issued
func (as *AccountService) CheckActive(ctx context.Context, p models.Principal) error {
	user, err := as.store.GetUserByID(ctx, p.UserID)
	if err != nil {
		if models.KindOf(err) == models.KindNotFound {
			return models.NewError(models.KindUnauthenticated, "account no longer exists")
		}
		return err
	}
	if !user.IsActive {
		return models.NewError(models.KindUnauthenticated, "account is deactivated")
	}
	return nil
}

// Profile returns the caller's account
func (as *AccountService) Profile(ctx context.Context, p models.Principal) (*models.User, error) {
	if p.Role == "" {
		return nil, models.ErrUnauthenticated
	}
	user, err := as.store.GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleSuperAdmin {
		if user.Categories, err = as.store.GetVendorCategories(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// UpdateProfile changes the caller's name and email
func (as *AccountService) UpdateProfile(ctx context.Context, p models.Principal, req ProfileRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.UpdateProfile")
	defer span.End()

	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	user, err := as.Profile(ctx, p)
	if err != nil {
		return nil, err
	}

	taken, err := as.store.EmailTaken(ctx, req.Email, user.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewError(models.KindConflict, "email already registered")
	}

	user.Name = req.Name
	user.Email = req.Email
	if err := as.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
