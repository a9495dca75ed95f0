package model

// PlaceholderName is assigned to records that arrive without a name.
const PlaceholderName = "Cliente_Sem_Nome"

type ClientRecord struct {
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Company          string `json:"company,omitempty"`
	Address          string `json:"address,omitempty"`
	PreferredContact string `json:"preferred_contact,omitempty"`
	Notes            string `json:"notes,omitempty"`

	// NamePlaceholder is set when Name was synthesized by the decoder.
	NamePlaceholder bool `json:"-"`
	// NotesSynthesized is set when Notes is a dump of the decoded payload.
	NotesSynthesized bool `json:"-"`
	// SourceBlank is set when the decoded payload held no non-blank value,
	// known or not.
	SourceBlank bool `json:"-"`
}

// HasContent reports whether the record carries anything worth relaying:
// a real name, an email, a phone number or notes. A synthesized notes dump
// only counts when the payload it was taken from had a non-blank value.
func (c ClientRecord) HasContent() bool {
	if c.Name != "" && !c.NamePlaceholder {
		return true
	}
	if c.Email != "" || c.Phone != "" {
		return true
	}
	if c.Notes == "" {
		return false
	}
	if !c.NotesSynthesized {
		return true
	}
	return !c.SourceBlank
}
