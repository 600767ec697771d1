package expr

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Cycle stands in for a list or map that contains itself.
const Cycle = "<cycle>"

// Format renders a value in the kernel's input-like text form. Strings are
// quoted, lists and maps are rendered recursively with sorted keys. A
// list or map met again while it is being rendered prints as Cycle.
func Format(v any) string {
	f := formatter{visiting: make(map[container]bool)}
	f.format(v)
	return f.b.String()
}

type formatter struct {
	b        strings.Builder
	visiting map[container]bool
}

// container identifies a list or map by its backing storage.
type container struct {
	ptr uintptr
	len int
}

// enter marks the list or map v as being rendered. It reports false when
// v is already on the path.
func (f *formatter) enter(v any) (leave func(), ok bool) {
	rv := reflect.ValueOf(v)
	key := container{ptr: rv.Pointer(), len: rv.Len()}
	if key.ptr == 0 {
		return func() {}, true
	}
	if f.visiting[key] {
		return nil, false
	}
	f.visiting[key] = true
	return func() { delete(f.visiting, key) }, true
}

func (f *formatter) format(v any) {
	b := &f.b
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case string:
		b.WriteString(strconv.Quote(val))
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case int:
		b.WriteString(strconv.Itoa(val))
	case float64:
		b.WriteString(formatFloat(val))
	case []any:
		leave, ok := f.enter(val)
		if !ok {
			b.WriteString(Cycle)
			return
		}
		defer leave()
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			f.format(item)
		}
		b.WriteByte(']')
	case map[string]any:
		leave, ok := f.enter(val)
		if !ok {
			b.WriteString(Cycle)
			return
		}
		defer leave()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString(": ")
			f.format(val[k])
		}
		b.WriteByte('}')
	case fmt.Stringer:
		b.WriteString(val.String())
	case error:
		b.WriteString(val.Error())
	default:
		if reflect.ValueOf(v).Kind() == reflect.Func {
			b.WriteString("<function>")
			return
		}
		fmt.Fprintf(b, "%v", v)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
