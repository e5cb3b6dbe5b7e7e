package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestHTTPStatus(t *testing.T) {
	notHost := New(ErrForbidden, "only the host can do that")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Invalid("title is required"), http.StatusBadRequest},
		{"wrapped forbidden", fmt.Errorf("advance: %w", notHost), http.StatusForbidden},
		{"not found", NotFoundOr(gorm.ErrRecordNotFound, "party"), http.StatusNotFound},
		{"exists", ErrAlreadyExists, http.StatusConflict},
		{"conflict", New(ErrConflict, "round already advanced"), http.StatusConflict},
		{"unprocessable", New(ErrUnprocessable, "no more questions"), http.StatusUnprocessableEntity},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorIdentity(t *testing.T) {
	notHost := New(ErrForbidden, "only the host can do that")
	wrapped := fmt.Errorf("ctx: %w", notHost)

	assert.True(t, errors.Is(wrapped, notHost))
	assert.True(t, errors.Is(wrapped, ErrForbidden))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, "only the host can do that", notHost.Error())
}

func TestNotFoundOrWrapsOtherErrors(t *testing.T) {
	err := NotFoundOr(errors.New("connection reset"), "group")

	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "loading group")
	assert.False(t, Public(err))
}

func TestDuplicate(t *testing.T) {
	assert.True(t, Duplicate(gorm.ErrDuplicatedKey))
	assert.True(t, Duplicate(fmt.Errorf("creating profile: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, Duplicate(&pq.Error{Code: "23505"}))
	assert.False(t, Duplicate(&pq.Error{Code: "23503"}))
	assert.False(t, Duplicate(gorm.ErrRecordNotFound))
	assert.False(t, Duplicate(nil))
}
