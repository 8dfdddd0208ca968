package taskwarrior

import (
	"fmt"
	"strings"
	"time"
)

const (
	PENDING   = "pending"
	COMPLETED = "completed"
	WAITING   = "waiting"
	DELETED   = "deleted"
	RECURRING = "recurring"
)

type CustomTime struct {
	time.Time
}

const taskwarriorTimeLayout = "20060102T150405Z" // YYYYMMDDTHHMMSSZ, 'Z' indicates UTC

// UnmarshalJSON implements the json.Unmarshaler interface for CustomTime.
func (ct *CustomTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "0" {
		ct.Time = time.Time{}
		return nil
	}

	t, err := time.Parse(taskwarriorTimeLayout, s)
	if err != nil {
		return fmt.Errorf("failed to parse Taskwarrior time string '%s': %w", s, err)
	}
	ct.Time = t
	return nil
}

// MarshalJSON implements the json.Marshaler interface for CustomTime.
func (ct CustomTime) MarshalJSON() ([]byte, error) {
	if ct.Time.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + ct.Time.UTC().Format(taskwarriorTimeLayout) + `"`), nil
}

func timeOf(ct *CustomTime) time.Time {
	if ct == nil {
		return time.Time{}
	}
	return ct.Time
}

type Annotation struct {
	Description string      `json:"description"`
	Entry       *CustomTime `json:"entry,omitempty"`
}

// Task is one record of `task export`.
type Task struct {
	UUID        string       `json:"uuid"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	Entry       *CustomTime  `json:"entry,omitempty"`
	Modified    *CustomTime  `json:"modified,omitempty"`
	End         *CustomTime  `json:"end,omitempty"`
	Due         *CustomTime  `json:"due,omitempty"`
	Project     string       `json:"project,omitempty"`
	Priority    string       `json:"priority,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	// ExchangeID links a mirrored task to its authoritative record. It needs
	// `uda.exchangeid.type=string` in taskrc to show up in reports, but
	// Taskwarrior keeps it either way.
	ExchangeID string `json:"exchangeid,omitempty"`
}

// LastModified is the modification stamp, falling back to the entry date for
// tasks that were never modified.
func (t *Task) LastModified() time.Time {
	if m := timeOf(t.Modified); !m.IsZero() {
		return m
	}
	return timeOf(t.Entry)
}
