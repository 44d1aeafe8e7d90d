package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"suffix and case", "Apple Inc", "apple"},
		{"trailing punctuation", "APPLE INC.", "apple"},
		{"multiple suffixes", "Globex Holdings Ltd.", "globex"},
		{"ampersand", "Procter & Gamble Co", "procter and gamble"},
		{"accents", "Société Générale SA", "societe generale"},
		{"inner suffix kept", "Co-operative Bank", "co operative bank"},
		{"only suffixes", "Company Inc", "company inc"},
		{"whitespace", "  Acme\t  Widgets  ", "acme widgets"},
		{"empty", "", ""},
		{"punctuation only", "--", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.raw))
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	for _, raw := range []string{"Apple Inc", "Company Inc", "Co & Co", "Müller GmbH & Co. KG"} {
		once := Clean(raw)
		assert.Equal(t, once, Clean(once), raw)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 100, Similarity("apple", "apple"))
	assert.Equal(t, 100, Similarity("", ""))
	assert.Equal(t, 0, Similarity("abc", ""))
	assert.Equal(t, 40, Similarity("apple", "acme"))
	assert.Equal(t, 93, Similarity("hewlett packard", "hewlet packard"))
}
