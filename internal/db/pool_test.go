package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_InvalidConnString(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://user@host:notaport/db", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse connection string")
}
