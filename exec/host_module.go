package exec

import (
	"fmt"
	"reflect"
)

// A HostFunction adapts a Go func with integer-kind parameters and results
// to the raw word calling convention of the guest boundary.
type HostFunction struct {
	sig    Signature
	method reflect.Value
}

// NewHostFunction wraps fn, which must be a func whose parameters and
// results are all of integer kind.
func NewHostFunction(fn interface{}) *HostFunction {
	method := reflect.ValueOf(fn)
	t := method.Type()
	if t.Kind() != reflect.Func {
		panic(fmt.Errorf("host function must be a func, got %v", t))
	}
	for i, n := 0, t.NumIn(); i < n; i++ {
		if !isWordKind(t.In(i).Kind()) {
			panic(fmt.Errorf("cannot export function with parameter type %v", t.In(i)))
		}
	}
	for i, n := 0, t.NumOut(); i < n; i++ {
		if !isWordKind(t.Out(i).Kind()) {
			panic(fmt.Errorf("cannot export function with return type %v", t.Out(i)))
		}
	}
	return &HostFunction{
		sig:    Signature{Params: t.NumIn(), Returns: t.NumOut()},
		method: method,
	}
}

func isWordKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr, reflect.Bool:
		return true
	default:
		return false
	}
}

func (f *HostFunction) GetSignature() Signature {
	return f.sig
}

func (f *HostFunction) Call(args ...uint64) ([]uint64, error) {
	t := f.method.Type()
	if len(args) != t.NumIn() {
		return nil, fmt.Errorf("expected %v args; got %v", t.NumIn(), len(args))
	}

	vargs := make([]reflect.Value, len(args))
	for i, v := range args {
		in := t.In(i)
		switch in.Kind() {
		case reflect.Bool:
			vargs[i] = reflect.ValueOf(v != 0).Convert(in)
		default:
			vargs[i] = reflect.ValueOf(v).Convert(in)
		}
	}

	vreturns := f.method.Call(vargs)

	returns := make([]uint64, len(vreturns))
	for i, v := range vreturns {
		switch v.Kind() {
		case reflect.Bool:
			if v.Bool() {
				returns[i] = 1
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			returns[i] = uint64(v.Int())
		default:
			returns[i] = v.Convert(reflect.TypeOf(uint64(0))).Uint()
		}
	}
	return returns, nil
}

// A HostModule is a named table of host functions.
type HostModule struct {
	name    string
	exports map[string]Function
}

// NewHostModule creates an empty host module.
func NewHostModule(name string) *HostModule {
	return &HostModule{name: name, exports: map[string]Function{}}
}

// Export registers fn under the given symbol name.
func (m *HostModule) Export(name string, fn interface{}) *HostModule {
	m.exports[name] = NewHostFunction(fn)
	return m
}

func (m *HostModule) Name() string {
	return m.name
}

func (m *HostModule) GetFunction(name string) (Function, error) {
	if f, ok := m.exports[name]; ok {
		return f, nil
	}
	return nil, ErrUnknownFunction
}

// Instantiate lets a host module double as its own definition.
func (m *HostModule) Instantiate(string) (Module, error) {
	return m, nil
}
