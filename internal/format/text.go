package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/lusohub/expressions-maker-a22311749/internal/model"
)

const (
	notProvided = "(nao fornecido)"
	bannerWidth = 50
)

// Text renders a labeled plain text block, delivered as a .txt attachment.
type Text struct{}

func (Text) Format(rec model.ClientRecord, now time.Time) (string, string, error) {
	rec = normalized(rec)
	banner := strings.Repeat("=", bannerWidth)

	lines := []string{
		banner,
		"REGISTO DE CLIENTE",
		banner,
		"Data de criacao: " + now.UTC().Format("2006-01-02 15:04:05") + " UTC",
		"",
		"INFORMACAO DO CLIENTE",
		strings.Repeat("-", bannerWidth),
	}

	fields := []struct {
		label string
		value string
	}{
		{"Nome", rec.Name},
		{"Email", rec.Email},
		{"Telefone", rec.Phone},
		{"Empresa", rec.Company},
		{"Morada", rec.Address},
		{"Contacto Preferido", rec.PreferredContact},
		{"Notas", rec.Notes},
	}
	for _, f := range fields {
		v := f.value
		if v == "" {
			v = notProvided
		}
		lines = append(lines, fmt.Sprintf("%s: %s", f.label, v))
	}

	lines = append(lines, "", banner, "Fim do registo", banner)

	return strings.Join(lines, "\n"), Filename(rec.Name, now, "txt"), nil
}
