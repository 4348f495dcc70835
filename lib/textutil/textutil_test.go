package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "janedoe", NormalizeName("Jane Doe"))
	require.Equal(t, "janedoe", NormalizeName("  jane\tdoe \n"))
	require.Equal(t, "janedoe", NormalizeName("janedoe"))
	require.Equal(t, "", NormalizeName("   "))
}
