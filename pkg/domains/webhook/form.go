package webhook

import (
	"bytes"
	"encoding/json"
	"net/url"
)

// FormPayload turns submitted form values into a JSON object so form
// deliveries go through the same classification as JSON bodies. Single
// values become strings, repeated keys become arrays, and values that are
// themselves JSON objects or arrays are embedded as-is.
func FormPayload(values url.Values) ([]byte, error) {
	obj := make(map[string]any, len(values))
	for key, vs := range values {
		switch len(vs) {
		case 0:
			continue
		case 1:
			obj[key] = formValue(vs[0])
		default:
			list := make([]any, 0, len(vs))
			for _, v := range vs {
				list = append(list, formValue(v))
			}
			obj[key] = list
		}
	}
	return json.Marshal(obj)
}

func formValue(v string) any {
	trimmed := bytes.TrimSpace([]byte(v))
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	return v
}
