package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/autoyard/garageapi/internal/core/domain"
	"github.com/autoyard/garageapi/internal/core/ports"
)

// DiscountService validates discount codes against amounts. Discounts are
// ordinary records of the "discount" resource; this service only adds the
// code lookup and the quote arithmetic.
type DiscountService struct {
	store ports.RecordStore
	now   func() time.Time
}

func NewDiscountService(store ports.RecordStore) *DiscountService {
	return &DiscountService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (s *DiscountService) Validate(ctx context.Context, code string, amount float64) (domain.Quote, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Quote{}, domain.NewError(http.StatusBadRequest, "MISSING_REQUIRED_FIELDS", "missing required fields: code")
	}
	if amount < 0 {
		return domain.Quote{}, domain.NewError(http.StatusBadRequest, "INVALID_AMOUNT", "amount must not be negative")
	}

	rec, err := s.store.FindByField(ctx, "discount", "code", code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Quote{}, domain.NewError(http.StatusNotFound, "DISCOUNT_NOT_FOUND", "unknown discount code")
		}
		return domain.Quote{}, fmt.Errorf("find discount %q: %w", code, err)
	}

	discount, err := domain.DiscountFromRecord(rec)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("decode discount %q: %w", code, err)
	}

	quote, applyErr := discount.Apply(amount, s.now())
	if applyErr != nil {
		return domain.Quote{}, applyErr
	}
	return quote, nil
}
