package quant

import (
	"encoding/json"
	"fmt"
)

// Signs is a sign vector whose JSON form is an array of numbers. Plain
// []uint8 would be encoded as a base64 string.
type Signs []uint8

func (s Signs) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	wide := make([]uint16, len(s))
	for i, v := range s {
		wide[i] = uint16(v)
	}
	return json.Marshal(wide)
}

func (s *Signs) UnmarshalJSON(b []byte) error {
	var wide []uint64
	if err := json.Unmarshal(b, &wide); err != nil {
		return err
	}
	if wide == nil {
		*s = nil
		return nil
	}
	out := make(Signs, len(wide))
	for i, v := range wide {
		if v > 0xff {
			return fmt.Errorf("sign[%d] = %d out of range", i, v)
		}
		out[i] = uint8(v)
	}
	*s = out
	return nil
}

type vectorJSON struct {
	Magnitude []uint64 `json:"magnitude"`
	Sign      Signs    `json:"sign"`
}

func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(vectorJSON{Magnitude: v.Magnitude, Sign: v.Sign})
}

func (v *Vector) UnmarshalJSON(b []byte) error {
	var w vectorJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	v.Magnitude, v.Sign = w.Magnitude, w.Sign
	return nil
}
