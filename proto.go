package georitm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Int is an integer the API encodes either as a number or as a string.
type Int int

func (i *Int) UnmarshalJSON(data []byte) error {
	f, err := parseNumber(data)
	if err != nil {
		log.Warn("ignoring invalid int", "value", string(data), "err", err)
		f = 0
	}
	*i = Int(math.Trunc(f))
	return nil
}

// Float is a float the API encodes either as a number or as a string.
type Float float64

func (f *Float) UnmarshalJSON(data []byte) error {
	v, err := parseNumber(data)
	if err != nil {
		log.Warn("ignoring invalid float", "value", string(data), "err", err)
		v = 0
	}
	*f = Float(v)
	return nil
}

// Text is a display string the API may also send as a number or a bool.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*t = ""
	case string:
		*t = Text(val)
	case float64, bool:
		*t = Text(data)
	default:
		log.Warn("ignoring invalid text", "value", string(data))
		*t = ""
	}
	return nil
}

func (t Text) String() string {
	return string(t)
}

// ID is an identifier the API encodes either as a string or as a number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric ids back as numbers, the way the API sends them.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(string(id)), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string {
	return string(id)
}

func parseNumber(data []byte) (float64, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, err
	}
	switch val := v.(type) {
	case nil:
		return 0, nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case float64:
		return val, nil
	case string:
		val = strings.TrimSpace(val)
		if val == "" {
			return 0, nil
		}
		return strconv.ParseFloat(val, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// decodeObjects decodes a JSON array, keeping only the items that decode
// into T. Anything that is not an array yields no items.
func decodeObjects[T any](data []byte) []T {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return []T{}
	}
	return decodeItems[T](raw)
}

// decodeItems decodes the object items of an array, skipping the rest.
// The result is never nil.
func decodeItems[T any](raw []json.RawMessage) []T {
	result := make([]T, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			continue
		}
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			log.Warn("skipping item", "err", err)
			continue
		}
		result = append(result, v)
	}
	return result
}

type treeRequest struct {
	Sort      string `json:"sort"`
	GroupType int    `json:"groupType"`
}

type treeGroup struct {
	Objs []json.RawMessage `json:"objs"`
}

type objectRequest struct {
	ObjectID []ID `json:"objectId"`
}

type areasRequest struct {
	ObjectID ID `json:"objectId"`
}

// Target is one (sub-device, area) pair an arm or disarm command addresses.
type Target struct {
	IMEI string `json:"imei"`
	Area int    `json:"area"`
}
