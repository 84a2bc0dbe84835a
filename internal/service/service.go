package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"marketplace-service/internal/models"

	"github.com/go-playground/validator/v10"
)

// EventPublisher publishes order lifecycle events
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// ObjectStorage stores product images and returns a public URL.
// credential is the caller's provider token and may be empty.
type ObjectStorage interface {
	Upload(ctx context.Context, credential, bucket, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, credential, bucket, key string) error
}

// ConfirmationMailer delivers order confirmations
type ConfirmationMailer interface {
	SendOrderConfirmation(ctx context.Context, c models.OrderConfirmation) error
}

// CheckoutGuard serialises checkouts per user and remembers idempotency keys
type CheckoutGuard interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
	RememberOrder(ctx context.Context, key string, orderID int64, ttl time.Duration) error
	LookupOrder(ctx context.Context, key string) (int64, bool, error)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateRequest runs struct validation and reports failures as a validation error
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.WrapError(models.KindValidation, err, "invalid request")
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, describeFieldError(fe))
	}
	return models.NewError(models.KindValidation, "invalid request: %s", strings.Join(fields, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}
