package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Phone is a phone number as accepted on the wire: a JSON number or a
// numeric string. It is normalized to int64 once, at decode time.
type Phone int64

// UnmarshalJSON accepts 9000000000 and "9000000000". null leaves the zero value.
func (p *Phone) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("phone: %w", err)
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*p = 0
			return nil
		}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("phone must be an integer")
	}
	*p = Phone(n)
	return nil
}
