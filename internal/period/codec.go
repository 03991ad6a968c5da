package period

import (
	"encoding/json"
	"net/url"
	"strconv"
)

const (
	paramMode  = "mode"
	paramMonth = "month"
	paramYear  = "year"
)

// storedState is the persisted form. Month is omitted for yearly windows.
type storedState struct {
	Mode  Mode `json:"mode"`
	Month int  `json:"month,omitempty"`
	Year  int  `json:"year"`
}

// EncodeQuery merges s into an existing query string, leaving unrelated
// parameters in place. The month parameter is removed in yearly mode.
func EncodeQuery(existing string, s State) string {
	values, err := url.ParseQuery(existing)
	if err != nil {
		values = url.Values{}
	}
	values.Set(paramMode, string(s.Mode))
	values.Set(paramYear, strconv.Itoa(s.Year))
	if s.Mode == Monthly {
		values.Set(paramMonth, strconv.Itoa(s.Month))
	} else {
		values.Del(paramMonth)
	}
	return values.Encode()
}

// DecodeQuery extracts the valid period fields of a query string. Missing or
// malformed fields are left nil so a lower-precedence source can fill them.
func DecodeQuery(q string) Partial {
	values, err := url.ParseQuery(q)
	if err != nil {
		return Partial{}
	}
	var p Partial
	if v := values.Get(paramMode); v != "" {
		if m := Mode(v); m.IsValid() {
			p.Mode = &m
		}
	}
	if v := values.Get(paramMonth); v != "" {
		if m, err := strconv.Atoi(v); err == nil && validMonth(m) {
			p.Month = &m
		}
	}
	if v := values.Get(paramYear); v != "" {
		if y, err := strconv.Atoi(v); err == nil && validYear(y) {
			p.Year = &y
		}
	}
	return p
}

// EncodeStored renders the durable representation of s.
func EncodeStored(s State) (string, error) {
	st := storedState{Mode: s.Mode, Year: s.Year}
	if s.Mode == Monthly {
		st.Month = s.Month
	}
	data, err := json.Marshal(st)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeStored extracts the valid fields of a persisted value. Corrupt
// values decode to an empty partial.
func DecodeStored(raw string) Partial {
	var st storedState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return Partial{}
	}
	var p Partial
	if st.Mode.IsValid() {
		m := st.Mode
		p.Mode = &m
	}
	if validMonth(st.Month) {
		m := st.Month
		p.Month = &m
	}
	if validYear(st.Year) {
		y := st.Year
		p.Year = &y
	}
	return p
}
