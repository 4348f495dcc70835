package platforms

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p, err := Parse("  Instagram ")
	require.NoError(t, err)
	require.Equal(t, Instagram, p)

	_, err = Parse("myspace")
	require.Error(t, err)
}

func TestNormalizeUsername(t *testing.T) {
	cases := []struct {
		platform Platform
		in       string
		expect   string
	}{
		{Instagram, "@Some_User", "some_user"},
		{Twitter, "  @JackieChan ", "jackiechan"},
		{Reddit, "u/Spez", "spez"},
		{Reddit, "@spez", "spez"},
		{Facebook, "zuck", "zuck"},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, NormalizeUsername(test.platform, test.in))
	}
}
