package physics

import (
	"fmt"
	"sort"

	"github.com/san-kum/trajopt/internal/dynamo"
)

var models = map[string]func() dynamo.System{
	"double_integrator": func() dynamo.System { return NewDoubleIntegrator() },
	"pendulum":          func() dynamo.System { return NewPendulum() },
	"cartpole":          func() dynamo.System { return NewCartPole() },
}

// New returns a fresh model by name.
func New(name string) (dynamo.System, error) {
	fn, ok := models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownModel, name)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
