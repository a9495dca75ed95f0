package model

import "testing"

func TestClientRecord_HasContent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rec  ClientRecord
		want bool
	}{
		{"empty", ClientRecord{}, false},
		{"real name", ClientRecord{Name: "Ana"}, true},
		{"placeholder only", ClientRecord{Name: PlaceholderName, NamePlaceholder: true}, false},
		{"email", ClientRecord{Name: PlaceholderName, NamePlaceholder: true, Email: "a@b.com"}, true},
		{"phone", ClientRecord{Phone: "+351"}, true},
		{"notes", ClientRecord{Name: PlaceholderName, NamePlaceholder: true, Notes: "hello world"}, true},
		{
			"synthesized dump of nothing",
			ClientRecord{Name: PlaceholderName, NamePlaceholder: true, Notes: `{"name":""}`, NotesSynthesized: true, SourceBlank: true},
			false,
		},
		{
			"synthesized dump of unknown keys",
			ClientRecord{Name: PlaceholderName, NamePlaceholder: true, Notes: `{"message":"call me"}`, NotesSynthesized: true},
			true,
		},
		{
			"synthesized dump with company",
			ClientRecord{Name: PlaceholderName, NamePlaceholder: true, Company: "Acme", Notes: `{"company":"Acme"}`, NotesSynthesized: true},
			true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.rec.HasContent(); got != tc.want {
				t.Fatalf("expected HasContent()=%v, got %v for %+v", tc.want, got, tc.rec)
			}
		})
	}
}
