package trigger

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spec(typ Type, args string) Spec {
	return Spec{Type: typ, Args: json.RawMessage(args)}
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %T: %v", err, err)
	if field != "" {
		assert.Equal(t, field, verr.Field)
	}
}

func TestBuildUnspecified(t *testing.T) {
	b := NewBuilder()

	for _, args := range []string{"", "null", "{}"} {
		trig, err := b.Build(spec(TypeUnspecified, args))
		require.NoError(t, err)
		assert.True(t, trig.IsUnspecified())
		assert.Nil(t, trig.Schedule())
		assert.Equal(t, "unspecified", trig.Key())
	}

	_, err := b.Build(spec(TypeUnspecified, `{"minutes":5}`))
	requireValidation(t, err, "args")
}

func TestBuildUnknownType(t *testing.T) {
	_, err := NewBuilder().Build(spec("weekly", `{}`))
	requireValidation(t, err, "type")
}

func TestBuildDate(t *testing.T) {
	b := NewBuilder()
	at := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	trig, err := b.Build(spec(TypeDate, `{"run_date":"2030-01-02T03:04:05Z"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeDate, trig.Type())
	assert.Equal(t, DateArgs{RunDate: at}, trig.Args())

	sched := trig.Schedule()
	assert.Equal(t, at, sched.Next(at.Add(-time.Hour)))
	assert.True(t, sched.Next(at).IsZero(), "date trigger fires only once")

	_, err = b.Build(spec(TypeDate, `{}`))
	requireValidation(t, err, "run_date")

	_, err = b.Build(spec(TypeDate, `{"run_date":"tomorrow"}`))
	requireValidation(t, err, "args")
}

func TestBuildDateInPastNeverFires(t *testing.T) {
	trig, err := NewBuilder().Build(spec(TypeDate, `{"run_date":"2001-01-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.True(t, trig.Schedule().Next(time.Now()).IsZero())
}

func TestBuildInterval(t *testing.T) {
	b := NewBuilder()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	trig, err := b.Build(spec(TypeInterval, `{"minutes":5}`))
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Minute), trig.Schedule().Next(now))

	trig, err = b.Build(spec(TypeInterval, `{"hours":1,"minutes":30}`))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, trig.Args().(IntervalArgs).Every())
}

func TestBuildIntervalAnchoredWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	trig, err := NewBuilder().Build(spec(TypeInterval,
		`{"hours":1,"start_date":"2026-03-01T10:00:00Z","end_date":"2026-03-01T12:30:00Z"}`))
	require.NoError(t, err)

	sched := trig.Schedule()
	assert.Equal(t, start, sched.Next(start.Add(-24*time.Hour)))
	assert.Equal(t, start.Add(time.Hour), sched.Next(start))
	assert.Equal(t, start.Add(2*time.Hour), sched.Next(start.Add(90*time.Minute)))
	assert.True(t, sched.Next(start.Add(2*time.Hour)).IsZero(), "no fire after end_date")
}

func TestBuildIntervalRejects(t *testing.T) {
	b := NewBuilder()

	_, err := b.Build(spec(TypeInterval, `{}`))
	requireValidation(t, err, "args")

	_, err = b.Build(spec(TypeInterval, `{"minutes":-1}`))
	requireValidation(t, err, "minutes")

	_, err = b.Build(spec(TypeInterval, `{"minutes":5,"every":"day"}`))
	requireValidation(t, err, "args")

	// would wrap around to a 25 minute interval
	_, err = b.Build(spec(TypeInterval, `{"days":213504}`))
	requireValidation(t, err, "days")

	_, err = b.Build(spec(TypeInterval, `{"weeks":30502}`))
	requireValidation(t, err, "weeks")

	// each field fits but the total does not
	_, err = b.Build(spec(TypeInterval, `{"weeks":15000,"days":106000}`))
	requireValidation(t, err, "days")

	_, err = b.Build(spec(TypeInterval,
		`{"minutes":5,"start_date":"2026-03-02T00:00:00Z","end_date":"2026-03-01T00:00:00Z"}`))
	requireValidation(t, err, "end_date")
}

func TestBuildCronExpression(t *testing.T) {
	b := NewBuilder()
	now := time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC)

	trig, err := b.Build(spec(TypeCron, `{"expression":"*/5 * * * *"}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC), trig.Schedule().Next(now))

	trig, err = b.Build(spec(TypeCron, `{"expression":"30 */5 * * * *"}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 5, 30, 0, time.UTC), trig.Schedule().Next(now))

	trig, err = b.Build(spec(TypeCron, `{"expression":"@hourly"}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), trig.Schedule().Next(now))
}

func TestBuildCronFields(t *testing.T) {
	b := NewBuilder()
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday

	trig, err := b.Build(spec(TypeCron, `{"hour":3}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC), trig.Schedule().Next(now))
	assert.Equal(t, Field("3"), trig.Args().(CronArgs).Hour)

	// day_of_week leaves day and month unrestricted
	trig, err = b.Build(spec(TypeCron, `{"day_of_week":"wed"}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), trig.Schedule().Next(now))

	// numeric day_of_week counts from Sunday
	trig, err = b.Build(spec(TypeCron, `{"day_of_week":0}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), trig.Schedule().Next(now))

	trig, err = b.Build(spec(TypeCron, `{"day_of_week":1}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), trig.Schedule().Next(now))

	trig, err = b.Build(spec(TypeCron, `{"minute":"*/15","hour":"9-17"}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), trig.Schedule().Next(now))
}

func TestBuildCronTimezone(t *testing.T) {
	trig, err := NewBuilder().Build(spec(TypeCron, `{"expression":"0 9 * * *","timezone":"America/New_York"}`))
	require.NoError(t, err)

	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	next := trig.Schedule().Next(now)
	assert.True(t, next.Equal(time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC)), "got %s", next)
}

func TestBuildCronRejects(t *testing.T) {
	b := NewBuilder()

	cases := map[string]struct {
		args  string
		field string
	}{
		"empty":            {`{}`, "args"},
		"bad expression":   {`{"expression":"every tuesday"}`, "expression"},
		"mixed forms":      {`{"expression":"* * * * *","minute":"5"}`, "expression"},
		"tz prefix":        {`{"expression":"CRON_TZ=UTC * * * * *"}`, "expression"},
		"unknown timezone": {`{"expression":"* * * * *","timezone":"Mars/Olympus"}`, "timezone"},
		"bad field":        {`{"minute":"61"}`, "expression"},
		"non-integer":      {`{"minute":1.5}`, "args"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := b.Build(spec(TypeCron, tc.args))
			requireValidation(t, err, tc.field)
		})
	}
}

func TestKeyIsCanonical(t *testing.T) {
	b := NewBuilder()

	a, err := b.Build(spec(TypeCron, `{"minute": 5}`))
	require.NoError(t, err)
	c, err := b.Build(spec(TypeCron, `{"minute":"5"}`))
	require.NoError(t, err)
	assert.Equal(t, a.Key(), c.Key())

	d, err := b.Build(spec(TypeInterval, `{"minutes":5}`))
	require.NoError(t, err)
	assert.NotEqual(t, a.Key(), d.Key())

	again, err := b.Build(d.Spec())
	require.NoError(t, err)
	assert.Equal(t, d.Key(), again.Key())
}

func TestNilTriggerIsUnspecified(t *testing.T) {
	var trig *Trigger
	assert.True(t, trig.IsUnspecified())
	assert.Equal(t, TypeUnspecified, trig.Type())
	assert.Equal(t, "unspecified", trig.Key())
	assert.Equal(t, UnspecifiedSpec(), trig.Spec())
}
