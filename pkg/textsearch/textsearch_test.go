package textsearch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/hkd-sync/pkg/textsearch"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "pho bo", textsearch.Fold("Phở Bò"))
	assert.Equal(t, "duong", textsearch.Fold("Đường"))
}

func TestContains(t *testing.T) {
	cases := []struct {
		haystack, needle string
		want             bool
	}{
		{"Cà phê sữa đá", "ca phe", true},
		{"Cà phê sữa đá", "SUA DA", true},
		{"Trà đá", "pho", false},
		{"Bánh mì", "", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, textsearch.Contains(c.haystack, c.needle), "%q contiene %q", c.haystack, c.needle)
	}
}
