package services

import "encoding/json"

// unmarshalRaw decodes a connector response payload into dst, treating an
// empty payload as a no-op rather than an error.
func unmarshalRaw(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
