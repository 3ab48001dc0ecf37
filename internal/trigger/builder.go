package trigger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Builder validates trigger specs and turns them into Triggers
type Builder struct {
	fieldParser cron.Parser
	exprParser  cron.Parser
}

// NewBuilder creates a new trigger builder
func NewBuilder() *Builder {
	return &Builder{
		fieldParser: cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		// SecondOptional allows both 5-field and 6-field (with seconds) expressions.
		exprParser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Build validates spec and returns the trigger it describes.
// It never has side effects; a failed build leaves callers' state untouched.
func (b *Builder) Build(spec Spec) (*Trigger, error) {
	typ, err := ParseType(string(spec.Type))
	if err != nil {
		return nil, err
	}

	switch typ {
	case TypeUnspecified:
		if !isEmptyArgs(spec.Args) {
			return nil, invalid("args", "unspecified trigger takes no arguments", nil)
		}
		return Unspecified(), nil
	case TypeDate:
		return b.buildDate(spec.Args)
	case TypeInterval:
		return b.buildInterval(spec.Args)
	case TypeCron:
		return b.buildCron(spec.Args)
	}
	return nil, invalid("type", fmt.Sprintf("unhandled trigger type %q", typ), nil)
}

func (b *Builder) buildDate(raw json.RawMessage) (*Trigger, error) {
	var args DateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.RunDate.IsZero() {
		return nil, invalid("run_date", "is required", nil)
	}
	return newTrigger(TypeDate, args, onceSchedule{at: args.RunDate})
}

func (b *Builder) buildInterval(raw json.RawMessage) (*Trigger, error) {
	var args IntervalArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	for name, v := range map[string]int{
		"weeks": args.Weeks, "days": args.Days, "hours": args.Hours,
		"minutes": args.Minutes, "seconds": args.Seconds,
	} {
		if v < 0 {
			return nil, invalid(name, "must not be negative", nil)
		}
	}
	every, field, ok := args.sum()
	if !ok {
		return nil, invalid(field, "interval too large", nil)
	}
	if every <= 0 {
		return nil, invalid("args", "interval must be greater than zero", nil)
	}
	if err := checkWindow(args.StartDate, args.EndDate); err != nil {
		return nil, err
	}

	var base cron.Schedule = cron.Every(every)
	if args.StartDate != nil {
		base = anchoredEvery{start: *args.StartDate, every: every}
	}
	return newTrigger(TypeInterval, args, windowed(base, nil, args.EndDate))
}

func (b *Builder) buildCron(raw json.RawMessage) (*Trigger, error) {
	var args CronArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	args.Expression = strings.TrimSpace(args.Expression)
	args.Timezone = strings.TrimSpace(args.Timezone)
	if err := checkWindow(args.StartDate, args.EndDate); err != nil {
		return nil, err
	}

	var (
		line   string
		parser cron.Parser
	)
	switch {
	case args.Expression != "" && args.hasFields():
		return nil, invalid("expression", "cannot be combined with individual cron fields", nil)
	case args.Expression != "":
		if strings.HasPrefix(args.Expression, "TZ=") || strings.HasPrefix(args.Expression, "CRON_TZ=") {
			return nil, invalid("expression", "use the timezone argument instead of a TZ prefix", nil)
		}
		line, parser = args.Expression, b.exprParser
	default:
		spec, ok := args.spec()
		if !ok {
			return nil, invalid("args", "cron trigger needs an expression or at least one field", nil)
		}
		line, parser = spec, b.fieldParser
	}

	if args.Timezone != "" {
		if _, err := time.LoadLocation(args.Timezone); err != nil {
			return nil, invalid("timezone", fmt.Sprintf("unknown timezone %q", args.Timezone), err)
		}
		line = "CRON_TZ=" + args.Timezone + " " + line
	}

	sched, err := parser.Parse(line)
	if err != nil {
		return nil, invalid("expression", fmt.Sprintf("invalid cron rule %q", line), err)
	}
	return newTrigger(TypeCron, args, windowed(sched, args.StartDate, args.EndDate))
}

func newTrigger(typ Type, args any, sched cron.Schedule) (*Trigger, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, invalid("args", "cannot encode arguments", err)
	}
	return &Trigger{typ: typ, args: args, raw: raw, schedule: sched}, nil
}

func decodeArgs(raw json.RawMessage, v any) error {
	if isEmptyArgs(raw) {
		raw = json.RawMessage(`{}`)
	}
	if err := decodeStrict(raw, v); err != nil {
		return invalid("args", "malformed trigger arguments", err)
	}
	return nil
}

func checkWindow(start, end *time.Time) error {
	if start != nil && end != nil && !end.After(*start) {
		return invalid("end_date", "must be after start_date", nil)
	}
	return nil
}
