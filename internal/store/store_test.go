package store

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}

func TestClassifyMySQLErrNilIsNil(t *testing.T) {
	assert.NoError(t, classifyMySQLErr(nil))
}

func TestClassifyMySQLErrUnknownIsUnavailable(t *testing.T) {
	err := classifyMySQLErr(errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestClassifyPostgresErrNilIsNil(t *testing.T) {
	assert.NoError(t, classifyPostgresErr(nil))
}

func TestClassifyPostgresErrUnknownIsUnavailable(t *testing.T) {
	err := classifyPostgresErr(errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
