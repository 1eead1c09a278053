package session

import (
	"reflect"
	"strings"
	"testing"
)

func TestDecodeFocus(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"json list", `["Key achievements","Growth and learning"]`, []string{"Key achievements", "Growth and learning"}},
		{"empty string", "", nil},
		{"not json", "just some words", nil},
		{"json but not a list", `{"focus":"x"}`, nil},
		{"list of blanks", `["  ", ""]`, nil},
		{"trims entries", `["  Goals  "]`, []string{"Goals"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DecodeFocus(tc.raw); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("DecodeFocus(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestGreetingMentionsContext(t *testing.T) {
	g := Greeting(Parameters{Conversation: "promotion", Feeling: "hopeful"})
	if !strings.Contains(g, "promotion") || !strings.Contains(g, "hopeful") {
		t.Fatalf("greeting missing session context: %q", g)
	}
}

func TestCoachContext(t *testing.T) {
	p := testParams()
	sc := p.CoachContext()
	if sc.Conversation != p.Conversation || sc.Feeling != p.Feeling {
		t.Fatalf("context mismatch: %+v", sc)
	}
	if !reflect.DeepEqual(sc.Focus, p.Focus) {
		t.Fatalf("focus mismatch: %v", sc.Focus)
	}
}
