package gm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/duotalk/duo-talk-gm/pkg/scenario"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"マグカップ", "マグカップ"},
		{"  マグカップ  ", "マグカップ"},
		{"ﾏｸﾞｶｯﾌﾟ", "マグカップ"},
		{"ＴＶ", "TV"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeName(tt.in))
	}
}

func TestResolveObject(t *testing.T) {
	w := scenario.KitchenMorning()

	tests := []struct {
		name       string
		query      string
		wantID     string
		wantMethod ResolutionMethod
	}{
		{"exact name", "マグカップ", "マグカップ", ResolveExact},
		{"half-width query", "ﾏｸﾞｶｯﾌﾟ", "マグカップ", ResolveExact},
		{"alias", "コーヒー", "コーヒーメーカー", ResolveAlias},
		{"alias full-width latin", "ＴＶ", "テレビ", ResolveAlias},
		{"unique substring", "メーカー", "コーヒーメーカー", ResolveDerived},
		{"ambiguous substring", "カ", "", ResolveNone},
		{"unknown", "コーヒー豆", "", ResolveNone},
		{"empty", "  ", "", ResolveNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, method := resolveObject(tt.query, w)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantMethod, method)
		})
	}
}

func TestResolveLocation(t *testing.T) {
	w := scenario.KitchenMorning()

	tests := []struct {
		name       string
		query      string
		wantID     string
		wantMethod ResolutionMethod
	}{
		{"exact id", "キッチン", "キッチン", ResolveExact},
		{"unique substring", "リビ", "リビング", ResolveDerived},
		{"unknown", "書斎", "", ResolveNone},
		{"empty", "", "", ResolveNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, method := resolveLocation(tt.query, w)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantMethod, method)
		})
	}
}
