package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateFormat(t *testing.T) {
	require.NoError(t, validateFormat("text"))
	require.NoError(t, validateFormat("json"))

	err := validateFormat("yaml")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid format")
}

func TestRunRequeueDeadEvents_InvalidArguments(t *testing.T) {
	t.Run("non-positive-limit", func(t *testing.T) {
		err := RunRequeueDeadEvents(context.Background(), 0, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "limit must be a positive number")
	})

	t.Run("invalid-format", func(t *testing.T) {
		err := RunRequeueDeadEvents(context.Background(), 10, "yaml")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid format")
	})
}

func TestRunSweepIdempotency_InvalidFormat(t *testing.T) {
	err := RunSweepIdempotency(context.Background(), "yaml")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid format")
}
