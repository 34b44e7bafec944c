package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	nf := NotFound("booking %s not found", "abc")
	inv := Invalid("homestay is not available")

	assert.Equal(t, KindNotFound, KindOf(nf))
	assert.Equal(t, KindInvalidRequest, KindOf(inv))
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, "booking abc not found", nf.Error())
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("confirming booking: %w", Invalid("wrong status"))

	assert.True(t, IsInvalid(err))
	assert.False(t, IsNotFound(err))
}
