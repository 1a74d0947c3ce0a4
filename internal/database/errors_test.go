package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrorClassPermanent},
		{"plain", errors.New("boom"), ErrorClassPermanent},
		{"pgx serialization", &pgconn.PgError{Code: "40001"}, ErrorClassSerialization},
		{"pgx deadlock", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"}), ErrorClassDeadlock},
		{"pq lock timeout", &pq.Error{Code: "55P03"}, ErrorClassTransient},
		{"pq unique", &pq.Error{Code: "23505"}, ErrorClassUniqueViolation},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, ErrorClassUniqueViolation},
		{"not null", &pgconn.PgError{Code: "23502"}, ErrorClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryable(&pq.Error{Code: "40P01"}))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestIsUniqueViolation(t *testing.T) {
	orderNumber := &pgconn.PgError{Code: "23505", ConstraintName: "idx_orders_order_number"}
	paymentID := &pq.Error{Code: "23505", Constraint: "idx_orders_payment_id"}

	assert.True(t, IsUniqueViolation(orderNumber))
	assert.True(t, IsUniqueViolation(orderNumber, "order_number"))
	assert.False(t, IsUniqueViolation(orderNumber, "payment_id"))
	assert.True(t, IsUniqueViolation(paymentID, "payment_id"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "40001"}))
}
