package opencode

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ParseEvents folds the JSON-lines output of `opencode run --format json`
// into the reply text and the last session id seen. Lines that are not JSON
// objects are skipped. The session id starts from fallback and is replaced
// by every non-empty string "sessionID" on any event. Text comes from
// "text" events only and is concatenated without separators. When a key
// repeats inside one object the last occurrence counts.
func ParseEvents(output, fallback string) (text, sessionID string) {
	sessionID = fallback

	var b strings.Builder
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !gjson.Valid(line) {
			continue
		}

		ev := gjson.Parse(line)
		if !ev.IsObject() {
			continue
		}

		if sid := member(ev, "sessionID"); sid.Type == gjson.String && sid.Str != "" {
			sessionID = sid.Str
		}

		if t := member(ev, "type"); t.Type != gjson.String || t.Str != "text" {
			continue
		}
		part := member(ev, "part")
		if !part.IsObject() {
			continue
		}
		if pt := member(part, "text"); pt.Type == gjson.String && pt.Str != "" {
			b.WriteString(pt.Str)
		}
	}

	return strings.TrimSpace(b.String()), sessionID
}

// member looks up a top-level key, taking the last of duplicate keys.
func member(obj gjson.Result, key string) gjson.Result {
	var v gjson.Result
	obj.ForEach(func(k, val gjson.Result) bool {
		if k.Str == key {
			v = val
		}
		return true
	})
	return v
}
