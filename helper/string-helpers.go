package helper

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cevaris/ordered_map"
	"github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
)

// TokensToOrderedMap converts a string of the form 'k1:v1,k2:v2' into an ordered map.
// 1) Split on comma to find each key:value pair.
// 2) Split on colon to separate the key from the value.
func TokensToOrderedMap(s string) *ordered_map.OrderedMap {
	o := ordered_map.NewOrderedMap()
	tokens := strings.Split(s, ",")
	if len(tokens) > 0 { // if there is a key pair...
		for idx := range tokens {
			x := strings.Split(tokens[idx], ":")
			if len(x) >= 2 { // if there is a key:value...
				o.Set(strings.TrimSpace(x[0]), strings.TrimSpace(x[1])) // set key, value
			}
		}
	}
	return o
}

// CsvToStringSliceTrimSpaces splits s on comma and trims spaces from each token.
func CsvToStringSliceTrimSpaces(s string) []string {
	f := func(c rune) bool {
		return c == ','
	}
	tokens := strings.FieldsFunc(s, f)
	for idx := range tokens {
		tokens[idx] = strings.TrimSpace(tokens[idx])
	}
	return tokens
}

// StringsToCsv joins the input slice with commas.
func StringsToCsv(s []string) string {
	return strings.Join(s, ",")
}

// GetStringFromInterfaceUseUtcTime converts an interface{} value to a string
// for the purposes of comparison and join keys. Times are converted to UTC.
func GetStringFromInterfaceUseUtcTime(log logger.Logger, input interface{}) (retval string) {
	return GetStringFromInterface(log, input, true)
}

// GetStringFromInterfacePreserveTimeZone converts an interface{} value to a string.
// Times will be in local time.
func GetStringFromInterfacePreserveTimeZone(log logger.Logger, input interface{}) (retval string) {
	return GetStringFromInterface(log, input, false)
}

// GetStringFromInterface converts an interface{} value to a string.
// Optionally return Times in UTC.
func GetStringFromInterface(log logger.Logger, input interface{}, useUTC bool) (retval string) {
	switch v := input.(type) {
	case int, int16, int32, int64, int8, uint8:
		retval = fmt.Sprintf("%d", v)
	case string:
		retval = v
	case float32:
		retval = strconv.FormatFloat(float64(v), 'f', -1, 32) // use 'f' to convert float to string without an exponent i.e. preserve all decimal points.
	case float64:
		retval = strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		if useUTC { // if caller requests UTC conversion...
			retval = v.UTC().Format(constants.TimeFormatSecondsTZ)
		} else { // else output Local time...
			retval = v.Format(constants.TimeFormatSecondsTZ)
		}
	case []uint8:
		retval = string(v)
	case bool:
		retval = fmt.Sprintf("%v", v)
	case nil:
		retval = ""
	default:
		log.Panic("unhandled type while fetching string from interface: type = ", reflect.TypeOf(input), "; value = ", input)
	}
	return
}

// OrderedMapValuesToStringSlice builds a list of values found in ordered map 'om' supplied as input.
// Output - this function modifies the supplied list 'l' and 'idx' by reference.
func OrderedMapValuesToStringSlice(log logger.Logger, om *ordered_map.OrderedMap, l *[]string, idx *int) {
	iter := om.IterFunc()
	if iter == nil {
		log.Panic("failed to get iterFunc in OrderedMapValuesToStringSlice()")
	}
	for kv, ok := iter(); ok; kv, ok = iter() {
		(*l)[*idx] = kv.Value.(string)
		*idx++
	}
}
