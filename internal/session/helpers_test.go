package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/andyjduncan/eurosight/internal/errors"
)

// apperrorsAs unwraps err into a structured error or fails the test.
func apperrorsAs(t *testing.T, err error) *apperrors.Error {
	t.Helper()
	var structured *apperrors.Error
	require.True(t, errors.As(err, &structured))
	return structured
}
