package cache

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// defaultKeySerializer renders arguments by walking their values with
// reflection. Map keys are sorted and struct fields keep declaration order,
// so equal values always serialize identically, in any process.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return defaultKeySerializer{}
}

// SerializeKey joins method and the rendered args with KeySeparator.
func (s defaultKeySerializer) SerializeKey(method string, args ...any) string {
	if len(args) == 0 {
		return method
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, arg := range args {
		parts = append(parts, s.render(reflect.ValueOf(arg)))
	}
	return strings.Join(parts, KeySeparator)
}

func (s defaultKeySerializer) render(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return "nil"
		}
		return s.render(v.Elem())

	case reflect.String:
		// Quoted so values cannot forge the surrounding syntax.
		return strconv.Quote(v.String())

	case reflect.Bool:
		return strconv.FormatBool(v.Bool())

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)

	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, v.Type().Bits())

	case reflect.Slice:
		if v.IsNil() {
			return "slice:nil"
		}
		return fmt.Sprintf("slice[%d]:{%s}", v.Len(), s.renderElems(v))

	case reflect.Array:
		return fmt.Sprintf("array[%d]:{%s}", v.Len(), s.renderElems(v))

	case reflect.Map:
		if v.IsNil() {
			return "map:nil"
		}
		return s.renderMap(v)

	case reflect.Struct:
		if text, ok := marshalText(v); ok {
			return strconv.Quote(text)
		}
		return s.renderStruct(v)

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// Addresses differ between processes, so only the type is stable.
		return "opaque:" + v.Type().String()
	}

	return s.jsonFallback(v)
}

func (s defaultKeySerializer) renderElems(v reflect.Value) string {
	parts := make([]string, v.Len())
	for i := range parts {
		parts[i] = s.render(v.Index(i))
	}
	return strings.Join(parts, ",")
}

func (s defaultKeySerializer) renderMap(v reflect.Value) string {
	pairs := make([]string, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		pairs = append(pairs, s.render(iter.Key())+"="+s.render(iter.Value()))
	}
	sort.Strings(pairs)
	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

func (s defaultKeySerializer) renderStruct(v reflect.Value) string {
	t := v.Type()
	parts := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, field.Name+":"+s.render(v.Field(i)))
	}
	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}

// marshalText renders values such as time.Time whose exported fields do not
// describe them.
func marshalText(v reflect.Value) (string, bool) {
	if !v.CanInterface() {
		return "", false
	}
	m, ok := v.Interface().(encoding.TextMarshaler)
	if !ok {
		return "", false
	}
	text, err := m.MarshalText()
	if err != nil {
		return "", false
	}
	return string(text), true
}

func (s defaultKeySerializer) jsonFallback(v reflect.Value) string {
	if !v.CanInterface() {
		return "fallback:" + v.Type().String()
	}
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return "fallback:" + v.Type().String()
	}
	return "json:" + string(data)
}

// HashKey serializes method and args and returns the 64-bit xxhash of the
// result as 16 hex digits. Use it where the serialized form is long or
// unbounded, such as full query descriptors.
func HashKey(serializer KeySerializer, method string, args ...any) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(serializer.SerializeKey(method, args...)))
}
