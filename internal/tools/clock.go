package tools

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/soyeahso/chainkit/internal/chain"
)

// TimezoneKey is the application context key current_time falls back to when the
// model does not name a timezone.
const TimezoneKey = "timezone"

type CurrentTimeInput struct {
	Timezone string `json:"timezone,omitempty" jsonschema_description:"IANA timezone name, e.g. Europe/Berlin. Defaults to the caller's timezone."`
}

// now is swapped in tests.
var now = time.Now

// CurrentTime is registered as a BinaryFunc so it can read the caller's timezone
// from the application context.
var CurrentTime = chain.NewTool(
	"current_time",
	"Return the current date and time.",
	GenerateSchema[CurrentTimeInput](),
	chain.BinaryFunc(currentTime),
)

func currentTime(_ context.Context, input, appCtx map[string]any) (any, error) {
	in, err := decodeInput[CurrentTimeInput](input)
	if err != nil {
		return nil, err
	}

	name := in.Timezone
	if name == "" {
		if tz, ok := appCtx[TimezoneKey].(string); ok {
			name = tz
		}
	}
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", name)
	}

	t := now().In(loc)
	return map[string]any{
		"time":     t.Format(time.RFC3339),
		"timezone": name,
		"weekday":  t.Weekday().String(),
	}, nil
}
