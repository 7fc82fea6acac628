package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: product is required", models.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: sale s1", models.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: rice", models.ErrInsufficientStock), http.StatusConflict},
		{fmt.Errorf("%w: log changed", models.ErrConflict), http.StatusConflict},
		{errors.New("socket closed"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-03-01", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{in: "2024-03-01T10:30", want: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{in: "2024-03-01T10:30:00+02:00", want: time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)},
		{in: "01/03/2024", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseDate("date", tt.in)
		if tt.wantErr {
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("parseDate(%q) error = %v, want validation error", tt.in, err)
			}
			continue
		}
		if err != nil || !got.Equal(tt.want) {
			t.Errorf("parseDate(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestFieldErrors(t *testing.T) {
	v := validator.New()
	v.SetTagName("binding")
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		t.Fatalf("register: %v", err)
	}
	req := purchaseRequest{Supplier: "  ", Product: "Rice", Category: "Food", Date: "2024-03-01"}
	err := v.Struct(req)
	if err == nil {
		t.Fatal("expected validation failure")
	}

	fields := fieldErrors(err)
	if fields["Supplier"] != "notblank" || fields["Quantity"] != "required" {
		t.Fatalf("fields = %v", fields)
	}
	if fieldErrors(errors.New("unexpected EOF")) != nil {
		t.Fatal("non-validation errors must not map to fields")
	}
}
