package mapping

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// timeLayouts are tried in order when a store returns timestamps as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var (
	timeType    = reflect.TypeOf((*time.Time)(nil)).Elem()
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// To converts a raw column value to T. A nil value yields the zero T.
func To[T any](src any) (T, error) {
	var out T
	if err := assign(reflect.ValueOf(&out).Elem(), src); err != nil {
		return out, err
	}
	return out, nil
}

// assign stores a raw driver value into dst, converting between the value
// kinds drivers return (int64, float64, bool, []byte, string, time.Time)
// and the Go type of dst. Types implementing sql.Scanner convert themselves.
func assign(dst reflect.Value, src any) error {
	if dst.CanAddr() && reflect.PointerTo(dst.Type()).Implements(scannerType) {
		return dst.Addr().Interface().(sql.Scanner).Scan(src)
	}

	if src == nil {
		dst.SetZero()
		return nil
	}

	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		switch s := src.(type) {
		case string:
			dst.SetString(s)
			return nil
		case []byte:
			dst.SetString(string(s))
			return nil
		case int64, float64, bool:
			dst.SetString(fmt.Sprint(s))
			return nil
		case time.Time:
			dst.SetString(s.Format(time.RFC3339Nano))
			return nil
		}

	case reflect.Bool:
		switch s := src.(type) {
		case bool:
			dst.SetBool(s)
			return nil
		case int64:
			dst.SetBool(s != 0)
			return nil
		case string, []byte:
			b, err := strconv.ParseBool(asString(s))
			if err != nil {
				return fmt.Errorf("convert %q to bool: %w", asString(s), err)
			}
			dst.SetBool(b)
			return nil
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := asInt64(src)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := asInt64(src)
		if err != nil {
			return err
		}
		if n < 0 || dst.OverflowUint(uint64(n)) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetUint(uint64(n))
		return nil

	case reflect.Float32, reflect.Float64:
		f, err := asFloat64(src)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
		return nil

	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 {
			if s, ok := src.(string); ok {
				dst.SetBytes([]byte(s))
				return nil
			}
		}

	case reflect.Struct:
		if dst.Type() == timeType {
			if s, ok := src.(string); ok || isBytes(src) {
				if !ok {
					s = asString(src)
				}
				t, err := parseTime(s)
				if err != nil {
					return err
				}
				dst.Set(reflect.ValueOf(t))
				return nil
			}
		}
	}

	return fmt.Errorf("cannot assign %T to %s", src, dst.Type())
}

func asInt64(src any) (int64, error) {
	switch s := src.(type) {
	case int64:
		return s, nil
	case int:
		return int64(s), nil
	case int32:
		return int64(s), nil
	case uint64:
		return int64(s), nil
	case float64:
		if s != float64(int64(s)) {
			return 0, fmt.Errorf("value %v is not integral", s)
		}
		return int64(s), nil
	case bool:
		if s {
			return 1, nil
		}
		return 0, nil
	case string, []byte:
		n, err := strconv.ParseInt(asString(s), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("convert %q to integer: %w", asString(s), err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("cannot convert %T to integer", src)
}

func asFloat64(src any) (float64, error) {
	switch s := src.(type) {
	case float64:
		return s, nil
	case float32:
		return float64(s), nil
	case int64:
		return float64(s), nil
	case int:
		return float64(s), nil
	case string, []byte:
		f, err := strconv.ParseFloat(asString(s), 64)
		if err != nil {
			return 0, fmt.Errorf("convert %q to float: %w", asString(s), err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot convert %T to float", src)
}

func asString(src any) string {
	if b, ok := src.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(src)
}

func isBytes(src any) bool {
	_, ok := src.([]byte)
	return ok
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}
