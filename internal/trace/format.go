package trace

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Format represents the output format for trace events.
type Format uint8

const (
	FormatAuto    Format = iota // pick from the output path
	FormatText                  // human-readable text
	FormatNDJSON                // newline-delimited JSON
	FormatChrome                // chrome://tracing / Perfetto JSON array
	FormatMsgpack               // length-free msgpack stream, one event after another
)

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson":
		return FormatNDJSON, nil
	case "chrome":
		return FormatChrome, nil
	case "msgpack":
		return FormatMsgpack, nil
	default:
		return FormatAuto, fmt.Errorf("invalid trace format: %q (expected: auto|text|ndjson|chrome|msgpack)", s)
	}
}

// DetectFormat maps an output path to a format. Stderr and unknown
// extensions get text.
func DetectFormat(path string) Format {
	switch {
	case path == "" || path == "-":
		return FormatText
	case strings.HasSuffix(path, ".ndjson"):
		return FormatNDJSON
	case strings.HasSuffix(path, ".json"):
		return FormatChrome
	case strings.HasSuffix(path, ".msgpack"):
		return FormatMsgpack
	default:
		return FormatText
	}
}

// processStart anchors the relative timestamps of the text format.
var processStart = time.Now()

// FormatEvent formats an event according to the specified format.
func FormatEvent(ev *Event, format Format) []byte {
	switch format {
	case FormatNDJSON:
		return formatNDJSON(ev)
	case FormatChrome:
		return formatChrome(ev)
	case FormatMsgpack:
		return formatMsgpack(ev)
	default:
		return formatText(ev)
	}
}

type wireEvent struct {
	Time     string            `json:"time" msgpack:"time"`
	Seq      uint64            `json:"seq" msgpack:"seq"`
	Kind     string            `json:"kind" msgpack:"kind"`
	Scope    string            `json:"scope" msgpack:"scope"`
	SpanID   uint64            `json:"span_id" msgpack:"span_id"`
	ParentID uint64            `json:"parent_id,omitempty" msgpack:"parent_id,omitempty"`
	Repo     string            `json:"repo,omitempty" msgpack:"repo,omitempty"`
	Name     string            `json:"name" msgpack:"name"`
	Detail   string            `json:"detail,omitempty" msgpack:"detail,omitempty"`
	Extra    map[string]string `json:"extra,omitempty" msgpack:"extra,omitempty"`
}

func toWire(ev *Event) wireEvent {
	return wireEvent{
		Time:     ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		Seq:      ev.Seq,
		Kind:     ev.Kind.String(),
		Scope:    ev.Scope.String(),
		SpanID:   ev.SpanID,
		ParentID: ev.ParentID,
		Repo:     ev.Repo,
		Name:     ev.Name,
		Detail:   ev.Detail,
		Extra:    ev.Extra,
	}
}

// formatNDJSON formats an event as newline-delimited JSON.
func formatNDJSON(ev *Event) []byte {
	data, err := json.Marshal(toWire(ev))
	if err != nil {
		return nil
	}
	return append(data, '\n')
}

func formatMsgpack(ev *Event) []byte {
	data, err := msgpack.Marshal(toWire(ev))
	if err != nil {
		return nil
	}
	return data
}

// formatChrome emits one element of the traceEvents array. The stream tracer
// writes the surrounding brackets and commas.
func formatChrome(ev *Event) []byte {
	type chromeEvent struct {
		Name string            `json:"name"`
		Cat  string            `json:"cat"`
		Ph   string            `json:"ph"`
		Ts   int64             `json:"ts"`
		Pid  int               `json:"pid"`
		Tid  uint64            `json:"tid"`
		S    string            `json:"s,omitempty"`
		Args map[string]string `json:"args,omitempty"`
	}

	c := chromeEvent{
		Name: ev.Name,
		Cat:  ev.Scope.String(),
		Ts:   ev.Time.Sub(processStart).Microseconds(),
		Pid:  1,
		Tid:  uint64(ev.Scope), // one lane per scope keeps B/E pairs nested
	}
	switch ev.Kind {
	case KindSpanBegin:
		c.Ph = "B"
	case KindSpanEnd:
		c.Ph = "E"
	default:
		c.Ph = "i"
		c.S = "g"
	}
	if ev.Detail != "" || ev.Repo != "" || len(ev.Extra) > 0 {
		c.Args = make(map[string]string, len(ev.Extra)+2)
		for k, v := range ev.Extra {
			c.Args[k] = v
		}
		if ev.Detail != "" {
			c.Args["detail"] = ev.Detail
		}
		if ev.Repo != "" {
			c.Args["repo"] = ev.Repo
		}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	return data
}

// formatText formats an event as human-readable text.
// Format: [elapsed] [indent]→/← scope:name (detail) {k=v}
func formatText(ev *Event) []byte {
	var sb strings.Builder

	elapsed := ev.Time.Sub(processStart)
	fmt.Fprintf(&sb, "[%9.3fs] ", elapsed.Seconds())

	if ev.ParentID > 0 {
		sb.WriteString(strings.Repeat("  ", max(int(ev.Scope)-1, 0)))
	}

	switch ev.Kind {
	case KindSpanBegin:
		sb.WriteString("→ ")
	case KindSpanEnd:
		sb.WriteString("← ")
	case KindPoint:
		sb.WriteString("• ")
	case KindHeartbeat:
		sb.WriteString("♡ ")
	}

	sb.WriteString(ev.Scope.String())
	sb.WriteByte(':')
	sb.WriteString(ev.Name)
	if ev.Repo != "" && ev.Scope > ScopeRepo {
		sb.WriteString(" [")
		sb.WriteString(ev.Repo)
		sb.WriteByte(']')
	}

	if ev.Detail != "" {
		sb.WriteString(" (")
		sb.WriteString(ev.Detail)
		sb.WriteString(")")
	}

	if len(ev.Extra) > 0 {
		keys := make([]string, 0, len(ev.Extra))
		for k := range ev.Extra {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(ev.Extra[k])
		}
		sb.WriteString("}")
	}

	sb.WriteString("\n")
	return []byte(sb.String())
}
