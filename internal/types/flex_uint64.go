package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexUint64 is an ID field that accepts both JSON numbers and numeric JSON
// strings. Clients are inconsistent about quoting large IDs, so request
// bodies decode through this instead of a plain uint64.
type FlexUint64 uint64

func (f *FlexUint64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("FlexUint64: %w", err)
		}
		raw = s
	}

	val, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("FlexUint64: invalid uint64 value %q: %w", raw, err)
	}
	*f = FlexUint64(val)
	return nil
}

func (f FlexUint64) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint64(f))
}

// Uint64 converts back to the plain type used by the services.
func (f FlexUint64) Uint64() uint64 {
	return uint64(f)
}
