package handlers

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/service/ledger"
)

var registerOnce sync.Once

// RegisterValidators adds the custom rules used by the request DTOs to gin's validator.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		err = v.RegisterValidation("notblank", validators.NotBlank)
	})
	return err
}

// fieldErrors maps each failing field to the rule it broke. It returns nil for errors that are not
// validation failures, such as malformed JSON.
func fieldErrors(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// Accepted date layouts, most specific first.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s must be a date (YYYY-MM-DD or RFC 3339)", models.ErrValidation, field)
}

// purchaseRequest is the body of POST /purchases.
type purchaseRequest struct {
	ID       string          `json:"id"`
	Supplier string          `json:"supplier" binding:"required,notblank"`
	Product  string          `json:"product" binding:"required,notblank"`
	Category string          `json:"category" binding:"required,notblank"`
	Quantity int64           `json:"quantity" binding:"required,gt=0"`
	Amount   decimal.Decimal `json:"amount"`
	Date     string          `json:"date" binding:"required"`
}

func (r purchaseRequest) input() (ledger.PurchaseInput, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return ledger.PurchaseInput{}, err
	}
	return ledger.PurchaseInput{
		ID:       r.ID,
		Supplier: r.Supplier,
		Product:  r.Product,
		Category: r.Category,
		Quantity: r.Quantity,
		Amount:   r.Amount,
		Date:     date,
	}, nil
}

// purchaseUpdateRequest is the body of PUT /purchases/:supplier/:itemID.
type purchaseUpdateRequest struct {
	Product  string          `json:"product" binding:"required,notblank"`
	Category string          `json:"category" binding:"required,notblank"`
	Quantity int64           `json:"quantity" binding:"required,gt=0"`
	Amount   decimal.Decimal `json:"amount"`
	Date     string          `json:"date" binding:"required"`
}

func (r purchaseUpdateRequest) update() (ledger.PurchaseUpdate, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return ledger.PurchaseUpdate{}, err
	}
	return ledger.PurchaseUpdate{
		Product:  r.Product,
		Category: r.Category,
		Quantity: r.Quantity,
		Amount:   r.Amount,
		Date:     date,
	}, nil
}

// saleRequest is the body of POST /sales.
type saleRequest struct {
	ID       string              `json:"id"`
	Customer string              `json:"customer" binding:"required,notblank"`
	Product  string              `json:"product" binding:"required,notblank"`
	Category string              `json:"category" binding:"required,notblank"`
	Quantity int64               `json:"quantity" binding:"required,gt=0"`
	Amount   decimal.Decimal     `json:"amount"`
	Price    decimal.NullDecimal `json:"price"`
	Date     string              `json:"date" binding:"required"`
}

func (r saleRequest) input() (ledger.SaleInput, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return ledger.SaleInput{}, err
	}
	return ledger.SaleInput{
		ID:       r.ID,
		Customer: r.Customer,
		Product:  r.Product,
		Category: r.Category,
		Quantity: r.Quantity,
		Amount:   r.Amount,
		Price:    r.Price,
		Date:     date,
	}, nil
}

// saleUpdateRequest is the body of PUT /sales/:customer/:itemID.
type saleUpdateRequest struct {
	Product  string              `json:"product" binding:"required,notblank"`
	Category string              `json:"category" binding:"required,notblank"`
	Quantity int64               `json:"quantity" binding:"required,gt=0"`
	Amount   decimal.Decimal     `json:"amount"`
	Price    decimal.NullDecimal `json:"price"`
	Date     string              `json:"date" binding:"required"`
}

func (r saleUpdateRequest) update() (ledger.SaleUpdate, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return ledger.SaleUpdate{}, err
	}
	return ledger.SaleUpdate{
		Product:  r.Product,
		Category: r.Category,
		Quantity: r.Quantity,
		Amount:   r.Amount,
		Price:    r.Price,
		Date:     date,
	}, nil
}
