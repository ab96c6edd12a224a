package form

import "encoding/json"

// jsonUnmarshalLenient decodes raw into out, leaving out untouched (and
// returning nil) when raw is empty — a blank submission still resumes
// the execution with an empty payload rather than failing.
func jsonUnmarshalLenient(raw []byte, out *map[string]interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
