package textnorm

import "testing"

func TestStrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"José", "Jose"},
		{"café", "cafe"},
		{"São João", "Sao Joao"},
		{"Ação e Coração", "Acao e Coracao"},
		{"naïve Zoë", "naive Zoe"},
		{"plain ascii 123 !?", "plain ascii 123 !?"},
		// precomposed vs decomposed input give the same result
		{"José", "Jose"},
		{"北京", "北京"},
		{"emoji 🚀", "emoji 🚀"},
	}

	for _, tc := range cases {
		if got := Strip(tc.in); got != tc.want {
			t.Fatalf("Strip(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestStrip_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"", "José", "Crème brûlée", "Ñandú", "ǅemal", "a\xffb", "Ωμέγα"}
	for _, in := range inputs {
		once := Strip(in)
		twice := Strip(once)
		if once != twice {
			t.Fatalf("expected Strip to be idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestStrip_InvalidUTF8PassesThrough(t *testing.T) {
	t.Parallel()

	in := "Jos\xc3\xa9 \xff\xfe end"
	want := "Jose \xff\xfe end"

	if got := Strip(in); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
