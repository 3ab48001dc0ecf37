package trigger

import (
	"encoding/json"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Type is the kind of recurrence rule attached to a scheduled task
type Type string

const (
	TypeDate        Type = "date"
	TypeInterval    Type = "interval"
	TypeCron        Type = "cron"
	TypeUnspecified Type = "unspecified"
)

// ParseType converts a string into a known trigger type
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeDate, TypeInterval, TypeCron, TypeUnspecified:
		return Type(s), nil
	}
	return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown trigger type %q", s)}
}

// Spec is the unvalidated {type, args} form accepted from callers and stored on disk
type Spec struct {
	Type Type            `json:"type"`
	Args json.RawMessage `json:"args"`
}

// UnspecifiedSpec returns the spec of a task without recurrence
func UnspecifiedSpec() Spec {
	return Spec{Type: TypeUnspecified, Args: json.RawMessage(`{}`)}
}

// Trigger is a validated recurrence rule. Values are immutable once built.
type Trigger struct {
	typ      Type
	args     any
	raw      json.RawMessage
	schedule cron.Schedule
}

// Unspecified returns the trigger of a task that never fires
func Unspecified() *Trigger {
	return &Trigger{typ: TypeUnspecified, raw: json.RawMessage(`{}`)}
}

// Type returns the trigger kind
func (t *Trigger) Type() Type {
	if t == nil {
		return TypeUnspecified
	}
	return t.typ
}

// IsUnspecified reports whether the trigger never fires
func (t *Trigger) IsUnspecified() bool {
	return t == nil || t.typ == TypeUnspecified
}

// Args returns the typed arguments: DateArgs, IntervalArgs, CronArgs or nil
func (t *Trigger) Args() any {
	return t.args
}

// Spec returns the canonical {type, args} form of the trigger
func (t *Trigger) Spec() Spec {
	if t == nil {
		return UnspecifiedSpec()
	}
	raw := make(json.RawMessage, len(t.raw))
	copy(raw, t.raw)
	return Spec{Type: t.typ, Args: raw}
}

// Key identifies the recurrence rule; two triggers with the same key fire identically
func (t *Trigger) Key() string {
	if t.IsUnspecified() {
		return string(TypeUnspecified)
	}
	return string(t.typ) + ":" + string(t.raw)
}

// Schedule returns the cron schedule driving the trigger, nil when unspecified
func (t *Trigger) Schedule() cron.Schedule {
	return t.schedule
}

func (t *Trigger) String() string {
	return t.Key()
}
