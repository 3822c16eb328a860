package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  *NotFoundError
		want string
	}{
		{
			name: "order",
			err:  &NotFoundError{Entity: EntityOrder, ID: 7, CustomerID: 10},
			want: "Order id '7' for the customer '10' not found",
		},
		{
			name: "customer",
			err:  &NotFoundError{Entity: EntityCustomer, ID: 999},
			want: "Customer id '999' not found",
		},
		{
			name: "product",
			err:  &NotFoundError{Entity: EntityProduct, ID: 42},
			want: "Product id '42' not found",
		},
		{
			name: "price",
			err:  &NotFoundError{Entity: EntityPrice, ID: 42},
			want: "Price for product id '42' not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, ErrNotFound) {
				t.Errorf("errors.Is(%v, ErrNotFound) = false", tt.err)
			}
			if errors.Is(tt.err, ErrBadRequest) || errors.Is(tt.err, ErrUpstreamUnavailable) {
				t.Errorf("not found error must not match other categories")
			}
		})
	}
}

func TestInsufficientStock(t *testing.T) {
	err := InsufficientStock(10)

	if err.Error() != "Product id 10 not available on stock" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if err.ProductID != 10 {
		t.Fatalf("expected product id 10, got %d", err.ProductID)
	}
	if !errors.Is(fmt.Errorf("create order: %w", err), ErrBadRequest) {
		t.Fatal("wrapped insufficient stock must be a bad request")
	}
}

func TestUpstreamError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &UpstreamError{Service: "product", Err: cause}

	if !IsUpstreamUnavailable(err) {
		t.Fatal("expected upstream category")
	}
	if IsNotFound(err) {
		t.Fatal("upstream failure must not be reported as not found")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause must be reachable through Unwrap")
	}
	if got := err.Error(); got != "product service unavailable: connection refused" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestErrOrderNotFoundIsNotFound(t *testing.T) {
	if !IsNotFound(ErrOrderNotFound) {
		t.Fatal("ErrOrderNotFound must belong to not found category")
	}
}

func TestIsIdempotencyConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "idempotency already exists",
			err:  ErrIdempotencyKeyAlreadyExists,
			want: true,
		},
		{
			name: "idempotency hash mismatch",
			err:  ErrIdempotencyHashMismatch,
			want: true,
		},
		{
			name: "wrapped idempotency conflict",
			err:  errors.Join(ErrIdempotencyHashMismatch, errors.New("extra context")),
			want: true,
		},
		{
			name: "non idempotency error",
			err:  ErrOrderConflict,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsIdempotencyConflict(tt.err)
			if got != tt.want {
				t.Errorf("IsIdempotencyConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}
