package stream

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/paracelsus/martpipe/constants"
	h "github.com/paracelsus/martpipe/helper"
	"github.com/paracelsus/martpipe/logger"
)

// NewRecord creates a new Record and returns it by value as we expect these records to go over
// channels by value too.
func NewRecord() Record {
	return Record{
		data: make(map[string]interface{}),
	}
}

func NewNilRecord() Record {
	return Record{}
}

func (sr Record) RecordIsNil() bool {
	return len(sr.data) == 0 && sr.data == nil
}

// Record is used to communicate rows between pipeline steps.
// Field values of nil represent null database values.
type Record struct {
	data map[string]interface{}
}

func (sr Record) SetData(name string, value interface{}) {
	sr.data[name] = value
}

func (sr Record) GetData(name string) interface{} {
	val, ok := sr.data[name]
	if !ok {
		panic(fmt.Sprintf("invalid key name %q supplied while trying to fetch value from record: %v", name, sr.data))
	}
	return val
}

// GetDataOk fetches a value without panicking when the field is absent.
// Absent fields and null fields are both legitimate in raw source rows.
func (sr Record) GetDataOk(name string) (interface{}, bool) {
	val, ok := sr.data[name]
	return val, ok
}

func (sr Record) GetDataMap() map[string]interface{} {
	return sr.data
}

func (sr Record) GetDataLen() int {
	return len(sr.data)
}

// GetDataAsStringUseUtcTime converts an interface{} value to a string for the
// purposes of comparison and join keys. Times are converted to UTC.
func (sr Record) GetDataAsStringUseUtcTime(log logger.Logger, name string) (retval string) {
	return sr.getStringFromInterface(log, name, true)
}

// GetDataAsStringPreserveTimeZone converts an interface{} value to a string.
// Times will be in local time.
func (sr Record) GetDataAsStringPreserveTimeZone(log logger.Logger, name string) (retval string) {
	return sr.getStringFromInterface(log, name, false)
}

func (sr Record) getStringFromInterface(log logger.Logger, name string, useUTC bool) (retval string) {
	v, ok := sr.data[name]
	if !ok {
		panic(fmt.Sprintf("unexpected field %q does not exist in the input stream (bad pipe definition?)", name))
	}
	return h.GetStringFromInterface(log, v, useUTC)
}

// GetDataKeysAsSlice builds a slice of strings containing the values found in sr.data for each of the supplied
// keys in slice keys.
func (sr Record) GetDataKeysAsSlice(log logger.Logger, keys []string) []string {
	retval := make([]string, 0) // no max capacity so this allows the caller to reuse keys multiple times.
	for _, k := range keys {
		retval = append(retval, sr.GetDataAsStringPreserveTimeZone(log, k))
	}
	return retval
}

// GetSortedDataMapKeys returns a slice of the keys found in map sr.data, sorted alphabetically.
func (sr Record) GetSortedDataMapKeys() []string {
	retval := make([]string, 0)
	for k := range sr.data {
		retval = append(retval, k)
	}
	sort.Slice(retval, func(i, j int) bool {
		return retval[i] < retval[j]
	})
	return retval
}

func (sr Record) CopyTo(t Record) {
	for k, v := range sr.data {
		t.SetData(k, v)
	}
}

// JoinKeyValue builds a composite string key from the values of the supplied
// ordered key fields, for use as a hash join key. Times are rendered in UTC so
// records from different sources join regardless of session time zone.
func (sr Record) JoinKeyValue(log logger.Logger, keys []string) string {
	b := strings.Builder{}
	for _, k := range keys {
		v, ok := sr.data[k]
		if !ok { // treat a missing key field same as null - it can never join.
			v = nil
		}
		b.WriteString(h.GetStringFromInterfaceUseUtcTime(log, v))
		b.WriteString("\x1f") // unit separator so composite keys can't collide.
	}
	return b.String()
}

// OrderedMapKeys returns the keys (or values) of an ordered map as a string slice,
// preserving order. Used to unpack join key configuration.
func OrderedMapKeys(log logger.Logger, keys *om.OrderedMap, useValues bool) []string {
	retval := make([]string, 0, keys.Len())
	iter := keys.IterFunc()
	if iter == nil {
		log.Panic("failed to get iterFunc while unpacking ordered join keys")
	}
	for kv, ok := iter(); ok; kv, ok = iter() {
		if useValues {
			retval = append(retval, kv.Value.(string))
		} else {
			retval = append(retval, kv.Key.(string))
		}
	}
	return retval
}

// MergeDataStreams combines records from s1 into a new record, followed by s2 into the new record before
// returning it. You can supply a nil s2 to create a copy of s1 that is returned.
// If allowOverwrite is false, an error is returned if a field in s2 already exists in s1.
func MergeDataStreams(s1 Record, s2 Record, allowOverwrite bool) (Record, error) {
	retval := NewRecord()
	for k, v := range s1.GetDataMap() { // for each key:value in the 1st source...
		retval.data[k] = v // save it to the output
	}
	if !s2.RecordIsNil() { // if s2 is not empty...
		for k, v := range s2.GetDataMap() { // for each key:value in the 2nd source...
			_, ok := retval.data[k]
			if ok && !allowOverwrite { // if the key already exists...
				return Record{}, fmt.Errorf("field %v exists in stream record", k)
			}
			retval.data[k] = v
		}
	}
	return retval, nil
}

// CastError is a soft row-level defect raised when a raw value cannot be
// converted to its canonical type during normalization. The affected field
// becomes null and the row proceeds; the error is reported, not fatal.
type CastError struct {
	Field string
	Value interface{}
	Want  string
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cannot cast field %q value %v to %v", e.Field, e.Value, e.Want)
}

// timeLayouts are the raw shapes accepted for time values arriving as strings.
// Source extracts land ISO timestamps with and without zone, plus bare dates.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	constants.DateFormat,
}

// GetString fetches a field as a string.
// Null (or absent) fields return ok=false with no error.
func (sr Record) GetString(name string) (val string, ok bool, err error) {
	v, exists := sr.data[name]
	if !exists || v == nil {
		return "", false, nil
	}
	switch t := v.(type) {
	case string:
		return t, true, nil
	case []uint8:
		return string(t), true, nil
	default:
		return "", false, &CastError{Field: name, Value: v, Want: "string"}
	}
}

// GetIdString fetches a field as an opaque identifier string. Source systems
// key rows with anything from UUIDs to serial integers, so integer widths are
// rendered in decimal rather than rejected. Empty strings read as null.
func (sr Record) GetIdString(name string) (val string, ok bool, err error) {
	v, exists := sr.data[name]
	if !exists || v == nil {
		return "", false, nil
	}
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != "", nil
	case []uint8:
		s := strings.TrimSpace(string(t))
		return s, s != "", nil
	case int64:
		return strconv.FormatInt(t, 10), true, nil
	case int:
		return strconv.Itoa(t), true, nil
	case int32:
		return strconv.FormatInt(int64(t), 10), true, nil
	case float64: // JSON numbers land as float64.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), true, nil
		}
		return "", false, &CastError{Field: name, Value: v, Want: "id"}
	default:
		return "", false, &CastError{Field: name, Value: v, Want: "id"}
	}
}

// GetInt64 fetches a field as an int64, accepting the integer widths and
// numeric strings that database drivers and CSV sources produce.
func (sr Record) GetInt64(name string) (val int64, ok bool, err error) {
	v, exists := sr.data[name]
	if !exists || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case int64:
		return t, true, nil
	case int:
		return int64(t), true, nil
	case int32:
		return int64(t), true, nil
	case float64: // JSON numbers land as float64.
		if t == float64(int64(t)) {
			return int64(t), true, nil
		}
		return 0, false, &CastError{Field: name, Value: v, Want: "int64"}
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, false, nil
		}
		i, perr := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if perr != nil {
			return 0, false, &CastError{Field: name, Value: v, Want: "int64"}
		}
		return i, true, nil
	case []uint8:
		i, perr := strconv.ParseInt(string(t), 10, 64)
		if perr != nil {
			return 0, false, &CastError{Field: name, Value: v, Want: "int64"}
		}
		return i, true, nil
	default:
		return 0, false, &CastError{Field: name, Value: v, Want: "int64"}
	}
}

// GetFloat64 fetches a field as a float64.
func (sr Record) GetFloat64(name string) (val float64, ok bool, err error) {
	v, exists := sr.data[name]
	if !exists || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case float64:
		return t, true, nil
	case float32:
		return float64(t), true, nil
	case int64:
		return float64(t), true, nil
	case int:
		return float64(t), true, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, false, nil
		}
		f, perr := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if perr != nil {
			return 0, false, &CastError{Field: name, Value: v, Want: "float64"}
		}
		return f, true, nil
	default:
		return 0, false, &CastError{Field: name, Value: v, Want: "float64"}
	}
}

// GetBool fetches a field as a bool.
func (sr Record) GetBool(name string) (val bool, ok bool, err error) {
	v, exists := sr.data[name]
	if !exists || v == nil {
		return false, false, nil
	}
	switch t := v.(type) {
	case bool:
		return t, true, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "t", "1":
			return true, true, nil
		case "false", "f", "0":
			return false, true, nil
		case "":
			return false, false, nil
		}
		return false, false, &CastError{Field: name, Value: v, Want: "bool"}
	default:
		return false, false, &CastError{Field: name, Value: v, Want: "bool"}
	}
}

// GetTime fetches a field as a time.Time, parsing string values against the
// accepted raw layouts.
func (sr Record) GetTime(name string) (val time.Time, ok bool, err error) {
	v, exists := sr.data[name]
	if !exists || v == nil {
		return time.Time{}, false, nil
	}
	switch t := v.(type) {
	case time.Time:
		return t, true, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false, nil
		}
		// Trailing Z after an offset-less layout is common in API extracts.
		for _, layout := range timeLayouts {
			if parsed, perr := time.Parse(layout, s); perr == nil {
				return parsed, true, nil
			}
		}
		return time.Time{}, false, &CastError{Field: name, Value: v, Want: "time"}
	case []uint8:
		rec := NewRecord()
		rec.SetData(name, string(t))
		return rec.GetTime(name)
	default:
		return time.Time{}, false, &CastError{Field: name, Value: v, Want: "time"}
	}
}

// GetDate fetches a field as a calendar day: midnight UTC of the value.
func (sr Record) GetDate(name string) (val time.Time, ok bool, err error) {
	t, ok, err := sr.GetTime(name)
	if !ok || err != nil {
		return time.Time{}, ok, err
	}
	return Day(t), true, nil
}

// Day truncates a time to its calendar day in UTC.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
