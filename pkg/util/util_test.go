package util

import (
	"strings"
	"testing"
)

func TestFormatNotes(t *testing.T) {
	notes := FormatNotes([]string{"Note 1", "Note 2"}, "AAMkAGI2")

	if !strings.HasPrefix(notes, "Note 1\nNote 2\n\n") {
		t.Errorf("Expected annotations first, got: %q", notes)
	}
	if !strings.HasSuffix(notes, "ExchangeID: AAMkAGI2") {
		t.Errorf("Expected trailing exchange id marker, got: %q", notes)
	}

	if got := FormatNotes(nil, "X1"); got != "ExchangeID: X1" {
		t.Errorf("Expected bare marker, got: %q", got)
	}
	if got := FormatNotes([]string{"only"}, ""); got != "only" {
		t.Errorf("Expected annotations only, got: %q", got)
	}
}

func TestParseNotes(t *testing.T) {
	annotations, id := ParseNotes(FormatNotes([]string{"Note 1", "Note 2"}, "AAMkAGI2="))

	if id != "AAMkAGI2=" {
		t.Errorf("Expected id AAMkAGI2=, got %q", id)
	}
	if len(annotations) != 2 || annotations[0] != "Note 1" || annotations[1] != "Note 2" {
		t.Errorf("Unexpected annotations %v", annotations)
	}
}

func TestGetExchangeIDFromNotes(t *testing.T) {
	if _, ok := GetExchangeIDFromNotes("just some notes"); ok {
		t.Error("Expected no id in plain notes")
	}
	if _, ok := GetExchangeIDFromNotes("mentions ExchangeID: inline"); ok {
		t.Error("Expected marker to be recognised only at line start")
	}
	id, ok := GetExchangeIDFromNotes("text\nExchangeID: abc-123\n")
	if !ok || id != "abc-123" {
		t.Errorf("Expected abc-123, got %q", id)
	}
}
