package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"earning_bot/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name  string
		err   error
		admin bool
		code  int
		body  string
	}{
		{"user deny", domain.Deny(domain.ReasonCooldownActive), false, http.StatusOK, `"allowed":false`},
		{"admin deny", domain.Deny(domain.ReasonInsufficientBalance), true, http.StatusUnprocessableEntity, `"reason":"insufficient_balance"`},
		{"not found", fmt.Errorf("x: %w", domain.ErrWithdrawalNotFound), true, http.StatusNotFound, "error"},
		{"transition", domain.TransitionError(1, domain.WithdrawalStatusApproved), true, http.StatusConflict, "error"},
		{"bad request", domain.ErrInvalidAmount, false, http.StatusBadRequest, "error"},
		{"storage", errors.New("connection refused"), false, http.StatusInternalServerError, "db error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tc.err, tc.admin)

			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
			assert.NotContains(t, w.Body.String(), "connection refused")
		})
	}
}

func TestQueryInt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?limit=500&page=-1&x=abc", nil)

	assert.Equal(t, 100, queryInt(c, "limit", 20, 100))
	assert.Equal(t, 1, queryInt(c, "page", 1, 0))
	assert.Equal(t, 7, queryInt(c, "x", 7, 0))
	assert.Equal(t, 3, queryInt(c, "missing", 3, 0))
}
