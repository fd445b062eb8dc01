package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes(t *testing.T) {
	t.Run("wrapped cause stays reachable", func(t *testing.T) {
		cause := errors.New("disk full")
		err := Wrap(cause, CodeInternal, "failed to create contact")

		assert.ErrorIs(t, err, cause)
		assert.True(t, HasCode(err, CodeInternal))
		assert.Equal(t, "failed to create contact: disk full", err.Error())
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeNotFound, "Contact not found"))

		assert.Equal(t, CodeNotFound, CodeOf(err))
		assert.True(t, Is(err, CodeNotFound))
		assert.False(t, Is(err, CodeConflict))
	})

	t.Run("uncoded errors are internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation: http.StatusBadRequest,
		CodeBadRequest: http.StatusBadRequest,
		CodeConflict:   http.StatusBadRequest,
		CodeNotFound:   http.StatusNotFound,
		CodeInternal:   http.StatusInternalServerError,

		CodeIdempotencyInProgress: http.StatusConflict,
		CodeRateLimited:           http.StatusTooManyRequests,
	}
	for code, status := range cases {
		assert.Equal(t, status, ToHTTPStatus(code), "code %s", code)
	}
}
