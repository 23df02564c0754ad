package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordMatcher_Keywords(t *testing.T) {
	m := KeywordMatcher{}
	assert.Equal(t, []string{"customer", "data", "exposed", "breach"},
		m.Keywords("Customer data is exposed to the breach; customer DATA!"))
	assert.Empty(t, m.Keywords("it is a"))
	assert.Empty(t, m.Keywords(""))
}

func TestKeywordMatcher_Shared(t *testing.T) {
	m := KeywordMatcher{}
	assert.Equal(t, 2, m.Shared([]string{"outage", "media", "trust"}, []string{"trust", "media", "media"}))
	assert.Equal(t, 0, m.Shared(nil, []string{"x"}))
}
