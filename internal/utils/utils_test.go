package utils_test

import (
	"testing"

	"github.com/jrsteele09/oamanage-auth/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "b", utils.FirstNonEmpty("", "  ", "b", "c"))
	require.Equal(t, "", utils.FirstNonEmpty("", " "))
	require.Equal(t, "", utils.FirstNonEmpty())
}

func TestEmailLocalPart(t *testing.T) {
	require.Equal(t, "hong", utils.EmailLocalPart("hong@example.com"))
	require.Equal(t, "nobody", utils.EmailLocalPart("nobody"))
}

func TestPointers(t *testing.T) {
	require.Nil(t, utils.NonEmptyPtr(""))
	require.Equal(t, "x", utils.Value(utils.NonEmptyPtr("x")))
	require.Equal(t, 0, utils.Value[int](nil))
	require.Equal(t, 5, *utils.Ptr(5))
}
