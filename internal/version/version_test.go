package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want Ordering
	}{
		{"1.0.0", "1.0.0", Equal},
		{"1.2.0", "1.1.9", Greater},
		{"2.0", "1.9.9", Greater},
		{"1.0.1", "1.0.0", Greater},
		{"1.0.0", "1.0.1", Less},
		{"1.2", "1.2.0", Equal},
		{"1.2.0.1", "1.2", Greater},
		{"1.10.0", "1.9.0", Greater},
		{"1.x.3", "1.0.3", Equal},
		{"", "0.0.0", Equal},
		{"v1.0.1", "1.0.0", Less},
		{"v1.2.3", "0.2.3", Equal},
		{"-1.0", "0.0", Equal},
		{"+2", "0", Equal},
		{"1.99999999999999999999999", "1.18446744073709551615", Greater},
		{"1.00000000000000000000002", "1.2", Equal},
		{"garbage", "0", Equal},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Compare(tc.a, tc.b), "%q vs %q", tc.a, tc.b)
	}
}

func TestCompareIsAntisymmetric(t *testing.T) {
	versions := []string{"0.0.1", "0.1", "1", "1.0.1", "1.2.0", "1.10", "2.0.0", "10.0"}
	for _, a := range versions {
		assert.Equal(t, Equal, Compare(a, a))
		for _, b := range versions {
			assert.Equal(t, -Compare(b, a), Compare(a, b), "%q vs %q", a, b)
		}
	}
}

func TestCompareIsTransitive(t *testing.T) {
	ordered := []string{"0.0.1", "0.1", "1.0.1", "1.2.0", "1.10", "2.0.0", "10.0"}
	for i := range ordered {
		for j := i + 1; j < len(ordered); j++ {
			assert.Equal(t, Less, Compare(ordered[i], ordered[j]), "%q < %q", ordered[i], ordered[j])
		}
	}
}

func TestNewerAndNormalize(t *testing.T) {
	assert.True(t, Newer("1.0.1", "1.0.0"))
	assert.False(t, Newer("1.0.0", "1.0.0"))
	assert.Equal(t, "1.2.0", Normalize("01.2.x"))
	assert.Equal(t, "0", Normalize(""))
	assert.Equal(t, "0.2", Normalize("v1.2"))
	assert.Equal(t, "1.99999999999999999999999", Normalize("1.099999999999999999999999"))
	assert.Equal(t, "greater", Greater.String())
}
