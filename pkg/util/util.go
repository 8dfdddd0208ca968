package util

import (
	"fmt"
	"regexp"
	"strings"
)

// ExchangeIDLabel prefixes the line that links a mirrored task back to its
// authoritative record.
const ExchangeIDLabel = "ExchangeID:"

var exchangeIDRegex = regexp.MustCompile(`(?m)^` + ExchangeIDLabel + ` (\S+)\s*$`)

// FormatNotes renders annotations one per line, followed by the exchange id
// marker when exchangeID is set.
func FormatNotes(annotations []string, exchangeID string) string {
	var b strings.Builder
	for _, a := range annotations {
		b.WriteString(a)
		b.WriteString("\n")
	}
	if exchangeID != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%s %s", ExchangeIDLabel, exchangeID))
	}
	return strings.TrimRight(b.String(), "\n")
}

// ParseNotes splits notes written by FormatNotes back into annotations and the
// exchange id. Notes without a marker yield an empty id.
func ParseNotes(notes string) ([]string, string) {
	id, _ := GetExchangeIDFromNotes(notes)
	body := exchangeIDRegex.ReplaceAllString(notes, "")

	var annotations []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			annotations = append(annotations, line)
		}
	}
	return annotations, id
}

// GetExchangeIDFromNotes returns the exchange id stored in notes.
func GetExchangeIDFromNotes(notes string) (string, bool) {
	matches := exchangeIDRegex.FindStringSubmatch(notes)
	if len(matches) > 1 {
		return matches[1], true
	}
	return "", false
}
