package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidParameter_MatchesThroughWrapping(t *testing.T) {
	base := InvalidParameter("alpha must be positive, got %v", -1.0)
	wrapped := fmt.Errorf("posterior summary: %w", base)
	appWrapped := Wrap(wrapped, "bayesian run failed")

	assert.True(t, IsInvalidParameter(base))
	assert.True(t, IsInvalidParameter(wrapped))
	assert.True(t, IsInvalidParameter(appWrapped))
	assert.Equal(t, CodeInvalidParameter, GetCode(appWrapped))
	assert.Contains(t, appWrapped.Error(), "alpha must be positive")
}

func TestIsInvalidParameter_OtherCodes(t *testing.T) {
	assert.False(t, IsInvalidParameter(NotFound("run")))
	assert.False(t, IsInvalidParameter(stderrors.New("plain")))
	assert.False(t, IsInvalidParameter(nil))
}

func TestWrap_PlainErrorBecomesInternal(t *testing.T) {
	err := Wrap(stderrors.New("boom"), "store run")
	assert.Equal(t, CodeInternalError, GetCode(err))
	assert.Nil(t, Wrap(nil, "ignored"))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("x")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{InvalidParameter("bad"), http.StatusBadRequest},
		{InvalidInput("bad body"), http.StatusBadRequest},
		{NotFound("design"), http.StatusNotFound},
		{DatabaseError("insert", stderrors.New("conn reset")), http.StatusInternalServerError},
		{stderrors.New("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}
