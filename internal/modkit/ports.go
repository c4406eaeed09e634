package modkit

import (
	"fmt"
	"reflect"
)

// PortsOf finds T in m.Ports(): either the bundle itself or the first
// exported field of a bundle struct (or pointer to one) holding a T
func PortsOf[T any](m Module) (T, bool) {
	var zero T
	bundle := m.Ports()
	if p, ok := bundle.(T); ok {
		return p, true
	}

	rv := reflect.ValueOf(bundle)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return zero, false
	}
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanInterface() {
			continue
		}
		if p, ok := f.Interface().(T); ok {
			return p, true
		}
	}
	return zero, false
}

// MustPortsOf panics when m exposes no T. Used only while wiring main
func MustPortsOf[T any](m Module) T {
	p, ok := PortsOf[T](m)
	if !ok {
		panic(fmt.Sprintf("modkit: module %q has no %s port", m.Name(), reflect.TypeOf((*T)(nil)).Elem()))
	}
	return p
}
