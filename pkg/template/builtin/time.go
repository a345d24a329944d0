package builtin

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/mockresolver/pkg/template"
)

// layoutAliases maps friendly layout names to Go layouts.
var layoutAliases = map[string]string{
	"rfc3339":     time.RFC3339,
	"iso":         time.RFC3339,
	"rfc3339nano": time.RFC3339Nano,
	"date":        time.DateOnly,
	"time":        time.TimeOnly,
	"datetime":    time.DateTime,
	"rfc1123":     time.RFC1123,
}

const http1123 = "Mon, 02 Jan 2006 15:04:05 GMT"

func timeFuncs(now func() time.Time) []template.FunctionSpec {
	return []template.FunctionSpec{
		spec("now", 0, 1, template.KindVolatile, funcNow(now),
			"Current time. The layout is a Go layout or one of rfc3339, date, time, datetime, rfc1123, http, unix, unixms.",
			"${now(date)}", optional("layout", "string", "output layout, rfc3339 by default")),
		spec("timestamp", 0, 0, template.KindVolatile, funcTimestamp(now, false),
			"Current Unix time in seconds.", "${timestamp()}"),
		spec("timestamp.ms", 0, 0, template.KindVolatile, funcTimestamp(now, true),
			"Current Unix time in milliseconds.", "${timestamp.ms()}"),
		spec("date.add", 1, 2, template.KindVolatile, funcDateAdd(now),
			"Current time shifted by a duration such as 90m, -2h or 7d.", "${date.add(7d, date)}",
			param("duration", "duration", "offset, Go syntax plus a d suffix for days"),
			optional("layout", "string", "output layout, rfc3339 by default")),
	}
}

func funcNow(now func() time.Time) template.Func {
	return func(_ *template.Context, args []template.Value) (template.Value, error) {
		return formatTime(now(), str(optArg(args, 0, ""))), nil
	}
}

func funcTimestamp(now func() time.Time, millis bool) template.Func {
	return func(*template.Context, []template.Value) (template.Value, error) {
		if millis {
			return now().UnixMilli(), nil
		}
		return now().Unix(), nil
	}
}

func funcDateAdd(now func() time.Time) template.Func {
	return func(_ *template.Context, args []template.Value) (template.Value, error) {
		d, err := parseDuration(str(args[0]))
		if err != nil {
			return nil, err
		}
		return formatTime(now().Add(d), str(optArg(args, 1, ""))), nil
	}
}

func formatTime(t time.Time, layout string) string {
	switch strings.ToLower(layout) {
	case "":
		return t.Format(time.RFC3339)
	case "unix":
		return strconv.FormatInt(t.Unix(), 10)
	case "unixms":
		return strconv.FormatInt(t.UnixMilli(), 10)
	case "http":
		return t.UTC().Format(http1123)
	}
	if l, ok := layoutAliases[strings.ToLower(layout)]; ok {
		return t.Format(l)
	}
	return t.Format(layout)
}

// parseDuration accepts Go durations plus a whole-day "d" suffix.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
