package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Scalar is a JSON value the remote sends inconsistently as a string, a number or a boolean.
// Flags such as isFull arrive as "0"/"1", 0/1 or true/false depending on the endpoint.
type Scalar string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	switch b[0] {
	case '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return fmt.Errorf("invalid string scalar %s: %w", b, err)
		}
		*s = Scalar(strings.TrimSpace(str))
		return nil
	case '{', '[':
		return fmt.Errorf("expected scalar, got %s", b)
	default:
		*s = Scalar(b)
		return nil
	}
}

// MarshalJSON writes the scalar back as a JSON string.
func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

func (s Scalar) String() string {
	return string(s)
}

// Unset reports whether a flag is explicitly off ("0", 0, false, "否"). Missing or unrecognised
// values are not off, so a seat flag the remote left out reads as full.
func (s Scalar) Unset() bool {
	switch strings.ToLower(string(s)) {
	case "0", "false", "n", "no", "否":
		return true
	}
	return false
}

// Int parses the scalar as a base-10 integer. Empty is zero.
func (s Scalar) Int() (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(string(s))
	if err != nil {
		f, ferr := strconv.ParseFloat(string(s), 64)
		if ferr != nil {
			return 0, fmt.Errorf("unable to parse integer from %q", string(s))
		}
		return int(f), nil
	}
	return n, nil
}

// Is reports whether the scalar equals code, so "200" and 200 compare the same.
func (s Scalar) Is(code string) bool {
	return string(s) == code
}
