// Package format renders client records into the body and filename sent to
// the chat webhook. All user supplied text is stripped of diacritics first.
package format

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"time"

	"github.com/lusohub/expressions-maker-a22311749/internal/model"
	"github.com/lusohub/expressions-maker-a22311749/internal/textnorm"
)

const (
	maxNameLen    = 50
	fallbackName  = "client"
	filenameStamp = "20060102_150405"
)

type Formatter interface {
	Format(rec model.ClientRecord, now time.Time) (body, filename string, err error)
}

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	underscores = regexp.MustCompile(`_+`)
)

// Filename builds client_<name>_<YYYYMMDD_HHMMSS>.<ext> from the record name.
// The name part only contains [A-Za-z0-9_-]; it is at most 50 characters
// plus the optional 9 character hash suffix added by SafeName.
func Filename(name string, now time.Time, ext string) string {
	return "client_" + SafeName(name) + "_" + now.UTC().Format(filenameStamp) + "." + ext
}

// SafeName reduces name to a filesystem safe token. When the reduction loses
// more than accents and spaces, a short hash of the original name is appended
// so distinct names stay distinct.
func SafeName(name string) string {
	plain := textnorm.Strip(strings.TrimSpace(name))
	if plain == "" {
		return fallbackName
	}

	s := unsafeChars.ReplaceAllString(plain, "_")
	s = underscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > maxNameLen {
		s = strings.TrimRight(s[:maxNameLen], "_")
	}
	if s == "" {
		s = fallbackName
	}
	if s != strings.Join(strings.Fields(plain), "_") {
		s += "_" + shortHash(name)
	}
	return s
}

func shortHash(s string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// normalized returns a copy of rec with every text field stripped.
func normalized(rec model.ClientRecord) model.ClientRecord {
	rec.Name = textnorm.Strip(rec.Name)
	rec.Email = textnorm.Strip(rec.Email)
	rec.Phone = textnorm.Strip(rec.Phone)
	rec.Company = textnorm.Strip(rec.Company)
	rec.Address = textnorm.Strip(rec.Address)
	rec.PreferredContact = textnorm.Strip(rec.PreferredContact)
	rec.Notes = textnorm.Strip(rec.Notes)
	return rec
}
