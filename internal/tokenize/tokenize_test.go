package tokenize

import (
	"reflect"
	"testing"
)

func TestTokenize_SplitsAndFilters(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"lowercases", "Kerb Appeal", []string{"kerb", "appeal"}},
		{"splits_on_punctuation", "beer,brewing;craft-beer", []string{"beer", "brewing", "craft", "beer"}},
		{"domain_yields_tld", "brewdog.com", []string{"brewdog", "com"}},
		{"drops_single_runes", "don't s a", []string{"don"}},
		{"drops_bare_numbers", "est. 1994 b2b 42", []string{"est", "b2b"}},
		{"keeps_corporate_suffixes", "Acme Inc. LLC Ltd", []string{"acme", "inc", "llc", "ltd"}},
		{"unicode_letters_survive", "Advogados Associados — São Paulo", []string{"advogados", "associados", "são", "paulo"}},
		{"whitespace_only", " \t\n ", nil},
		{"punctuation_only", "*** !!! ...", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Tokenize(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Tokenize(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestTokenize_PreservesDuplicates(t *testing.T) {
	got := Tokenize("beer beer beer")
	if want := []string{"beer", "beer", "beer"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %#v, want %#v", got, want)
	}
}

func TestTermSet_CollapsesAcrossFields(t *testing.T) {
	set := TermSet("Crafty Brewing", "crafty.com", "beer; brewing; craft beer")

	want := map[string]struct{}{
		"crafty":  {},
		"brewing": {},
		"com":     {},
		"beer":    {},
		"craft":   {},
	}
	if !reflect.DeepEqual(set, want) {
		t.Fatalf("TermSet() = %#v, want %#v", set, want)
	}
}

func TestTermSet_EmptyFields(t *testing.T) {
	if got := TermSet("", "", ""); len(got) != 0 {
		t.Fatalf("TermSet(empty) = %#v, want empty", got)
	}
}
