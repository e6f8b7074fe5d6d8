package providers

import "encoding/json"

// rawToAny decodes a tool-call's raw JSON input into a generic value for
// SDKs that want an interface{} rather than raw bytes.
func rawToAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{}
	}
	return v
}
