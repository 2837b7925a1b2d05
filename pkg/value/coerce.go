package value

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
)

/*
 * Lenient coercion used by Container.To.
 *
 * Order of attempts:
 *   1. Direct assignment / reflect conversion between compatible kinds.
 *   2. Numeric targets accept numbers and numeric strings (trimmed).
 *   3. String targets accept any primitive, formatted without exponent.
 *   4. time.Time targets accept RFC3339 strings.
 *   5. Everything else round-trips through encoding/json.
 *
 * Booleans are strict: only bool and "true"/"false" strings convert.
 */

var (
	timeType = reflect.TypeOf(time.Time{})
	urlType  = reflect.TypeOf(url.URL{})
)

func assign(src any, dst reflect.Value) error {
	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}

	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(src, elem.Elem()); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	if dst.Kind() == reflect.Interface && sv.Type().Implements(dst.Type()) {
		dst.Set(sv)
		return nil
	}

	if dst.Type() == timeType {
		return assignTime(src, dst)
	}
	if dst.Type() == urlType {
		s, ok := src.(string)
		if !ok {
			return fmt.Errorf("%w: %T to URL", ErrConversion, src)
		}
		u, err := url.Parse(s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConversion, err)
		}
		dst.Set(reflect.ValueOf(*u))
		return nil
	}

	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f, err := toFloat(src)
		if err != nil {
			return err
		}
		if f != math.Trunc(f) || dst.OverflowInt(int64(f)) {
			return fmt.Errorf("%w: %v does not fit %s", ErrConversion, src, dst.Type())
		}
		dst.SetInt(int64(f))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f, err := toFloat(src)
		if err != nil {
			return err
		}
		if f < 0 || f != math.Trunc(f) || dst.OverflowUint(uint64(f)) {
			return fmt.Errorf("%w: %v does not fit %s", ErrConversion, src, dst.Type())
		}
		dst.SetUint(uint64(f))
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := toFloat(src)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
		return nil
	case reflect.String:
		s, err := toText(src)
		if err != nil {
			return err
		}
		dst.SetString(s)
		return nil
	case reflect.Bool:
		switch b := src.(type) {
		case bool:
			dst.SetBool(b)
			return nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return fmt.Errorf("%w: %q is not a boolean", ErrConversion, b)
			}
			dst.SetBool(parsed)
			return nil
		}
		return fmt.Errorf("%w: %T to bool", ErrConversion, src)
	}

	if sv.Type().ConvertibleTo(dst.Type()) && sv.Kind() == dst.Kind() {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}

	// Structured values: round-trip through JSON.
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}
	if err := json.Unmarshal(data, dst.Addr().Interface()); err != nil {
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return nil
}

// toFloat accepts numeric kinds and numeric strings. Booleans are rejected.
func toFloat(src any) (float64, error) {
	switch v := src.(type) {
	case json.Number:
		return v.Float64()
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, fmt.Errorf("%w: empty string is not a number", ErrConversion)
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrConversion, v)
		}
		return f, nil
	}

	rv := reflect.ValueOf(src)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return 0, fmt.Errorf("%w: %T is not numeric", ErrConversion, src)
}

// toText formats primitives; structured values are rejected.
func toText(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return v.String(), nil
	}

	rv := reflect.ValueOf(src)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	}
	return "", fmt.Errorf("%w: %T is not text", ErrConversion, src)
}

func assignTime(src any, dst reflect.Value) error {
	switch v := src.(type) {
	case time.Time:
		dst.Set(reflect.ValueOf(v))
		return nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %q is not an RFC3339 timestamp", ErrConversion, v)
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	}
	return fmt.Errorf("%w: %T to time.Time", ErrConversion, src)
}
