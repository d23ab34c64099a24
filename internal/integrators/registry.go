package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/trajopt/internal/dynamo"
)

// Method is implemented by every integrator in this package.
type Method interface {
	dynamo.Integrator
	dynamo.HoldIntegrator
}

var methods = map[string]func() Method{
	"euler": func() Method { return NewEuler() },
	"rk3":   func() Method { return NewHoldRK3() },
	"rk4":   func() Method { return NewRK4() },
}

// New returns a fresh integrator by name.
func New(name string) (Method, error) {
	fn, ok := methods[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
