package format

import (
	"encoding/json"
	"time"

	"github.com/lusohub/expressions-maker-a22311749/internal/model"
)

// document fixes the key order of the JSON rendering. Empty fields are null.
type document struct {
	Name             *string `json:"name"`
	Email            *string `json:"email"`
	Phone            *string `json:"phone"`
	Company          *string `json:"company"`
	Address          *string `json:"address"`
	PreferredContact *string `json:"preferred_contact"`
	Notes            *string `json:"notes"`
	CreatedAt        string  `json:"created_at"`
}

// JSON renders an indented JSON document, delivered inline as message content.
type JSON struct{}

func (JSON) Format(rec model.ClientRecord, now time.Time) (string, string, error) {
	rec = normalized(rec)

	doc := document{
		Name:             nullable(rec.Name),
		Email:            nullable(rec.Email),
		Phone:            nullable(rec.Phone),
		Company:          nullable(rec.Company),
		Address:          nullable(rec.Address),
		PreferredContact: nullable(rec.PreferredContact),
		Notes:            nullable(rec.Notes),
		CreatedAt:        now.UTC().Format(time.RFC3339),
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", "", err
	}
	return string(b), Filename(rec.Name, now, "json"), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
