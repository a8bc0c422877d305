package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"artisanat/models"
	"artisanat/storage"
)

func TestFromMapsStorageSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   Code
	}{
		{fmt.Errorf("get user: %w", storage.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{fmt.Errorf("create category: %w", storage.ErrConflict), http.StatusConflict, CodeConflict},
		{models.ErrForbiddenTransition, http.StatusBadRequest, CodeBadRequest},
		{models.ErrSameStatus, http.StatusBadRequest, CodeBadRequest},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		got := From(tc.err)
		assert.Equal(t, tc.status, got.Status, tc.err.Error())
		assert.Equal(t, tc.code, got.Code, tc.err.Error())
	}
}

func TestFromKeepsAppErrors(t *testing.T) {
	orig := Validation(map[string]string{"email": "required"})
	wrapped := fmt.Errorf("register: %w", orig)

	got := From(wrapped)
	assert.Same(t, orig, got)
	assert.Equal(t, "required", got.Fields["email"])
}

func TestFromStockError(t *testing.T) {
	se := &storage.StockError{Shortages: []storage.Shortage{
		{ProductID: 1, Name: "Panier tressé", Available: 1, Requested: 3},
	}}

	got := From(fmt.Errorf("place order: %w", se))
	assert.Equal(t, http.StatusConflict, got.Status)
	assert.Equal(t, "insufficient stock for Panier tressé: available 1, requested 3", got.Fields["Panier tressé"])
	assert.True(t, errors.Is(got, storage.ErrInsufficientStock))
}

func TestInternalHidesCause(t *testing.T) {
	e := Internal(errors.New("pq: connection refused"))
	assert.Equal(t, "internal server error", e.Message)
	assert.Contains(t, e.Error(), "connection refused")
	assert.Nil(t, From(nil))
}
