package util

import "reflect"

func Last[E any](s []E) *E {
	n := len(s)
	if n == 0 {
		return nil
	}
	return &s[n-1]
}

// IsNil reports whether v is nil or a typed nil pointer, map, slice, chan, func or interface.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
