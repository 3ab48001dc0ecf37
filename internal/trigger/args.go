package trigger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateArgs fires once at RunDate
type DateArgs struct {
	RunDate time.Time `json:"run_date"`
}

// IntervalArgs fires every Weeks+Days+Hours+Minutes+Seconds, optionally inside a window
type IntervalArgs struct {
	Weeks     int        `json:"weeks,omitempty"`
	Days      int        `json:"days,omitempty"`
	Hours     int        `json:"hours,omitempty"`
	Minutes   int        `json:"minutes,omitempty"`
	Seconds   int        `json:"seconds,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Every returns the interval length. It is only meaningful for args that
// passed sum, which rejects lengths a time.Duration cannot hold.
func (a IntervalArgs) Every() time.Duration {
	d, _, _ := a.sum()
	return d
}

// sum adds up the non-negative interval fields, reporting the field that
// pushed the total past the largest time.Duration
func (a IntervalArgs) sum() (time.Duration, string, bool) {
	parts := []struct {
		name  string
		value int
		unit  time.Duration
	}{
		{"weeks", a.Weeks, 7 * 24 * time.Hour},
		{"days", a.Days, 24 * time.Hour},
		{"hours", a.Hours, time.Hour},
		{"minutes", a.Minutes, time.Minute},
		{"seconds", a.Seconds, time.Second},
	}
	var total time.Duration
	for _, p := range parts {
		if int64(p.value) > math.MaxInt64/int64(p.unit) {
			return 0, p.name, false
		}
		d := time.Duration(p.value) * p.unit
		if total > math.MaxInt64-d {
			return 0, p.name, false
		}
		total += d
	}
	return total, "", true
}

// CronArgs fires on a crontab rule, given either as a full Expression or per field.
// DayOfWeek follows crontab numbering: 0 is Sunday, 1 is Monday, 6 is Saturday.
// Names (mon-sun) are accepted and are the unambiguous form.
type CronArgs struct {
	Expression string     `json:"expression,omitempty"`
	Second     Field      `json:"second,omitempty"`
	Minute     Field      `json:"minute,omitempty"`
	Hour       Field      `json:"hour,omitempty"`
	Day        Field      `json:"day,omitempty"`
	Month      Field      `json:"month,omitempty"`
	DayOfWeek  Field      `json:"day_of_week,omitempty"`
	Timezone   string     `json:"timezone,omitempty"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
}

// Field is a single crontab field. JSON numbers are accepted and stored as text.
type Field string

func (f *Field) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Field(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("cron field must be a string or integer")
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("cron field %s is not an integer", n)
	}
	*f = Field(n.String())
	return nil
}

// fields returns the crontab fields ordered from least to most significant
func (a CronArgs) fields() []Field {
	return []Field{a.Second, a.Minute, a.Hour, a.DayOfWeek, a.Day, a.Month}
}

// fieldMinimums parallels fields(); day_of_week never narrows to a minimum
var fieldMinimums = []string{"0", "0", "0", "*", "1", "1"}

// spec renders the per-field form as a six-field crontab line.
// Fields more significant than the least significant given one default to "*",
// less significant ones to their minimum.
func (a CronArgs) spec() (string, bool) {
	fs := a.fields()
	lowest := -1
	for i, f := range fs {
		if f != "" {
			lowest = i
			break
		}
	}
	if lowest < 0 {
		return "", false
	}
	v := make([]string, len(fs))
	for i, f := range fs {
		switch {
		case f != "":
			v[i] = string(f)
		case i < lowest:
			v[i] = fieldMinimums[i]
		default:
			v[i] = "*"
		}
	}
	// second minute hour day month day_of_week
	return strings.Join([]string{v[0], v[1], v[2], v[4], v[5], v[3]}, " "), true
}

func (a CronArgs) hasFields() bool {
	for _, f := range a.fields() {
		if f != "" {
			return true
		}
	}
	return false
}

// decodeStrict decodes args into v rejecting unknown fields and trailing data
func decodeStrict(args json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after args")
	}
	return nil
}

func isEmptyArgs(args json.RawMessage) bool {
	s := string(bytes.TrimSpace(args))
	return s == "" || s == "null" || s == "{}"
}
