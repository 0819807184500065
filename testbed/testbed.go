// Package testbed holds the demo scenes rendered by the vkframe binary.
package testbed

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine"
)

const (
	DemoTriangle     = "triangle"
	DemoCube         = "cube"
	DemoTexturedCube = "textured-cube"
)

var ErrUnknownDemo = errors.New("unknown demo")

var demos = map[string]func(cfg *engine.ApplicationConfig) *engine.Game{
	DemoTriangle:     NewTriangle,
	DemoCube:         NewCube,
	DemoTexturedCube: NewTexturedCube,
}

// Names lists the available demos in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the game selected by cfg.Demo.
func New(cfg *engine.ApplicationConfig) (*engine.Game, error) {
	if cfg == nil {
		return nil, errors.New("no application config")
	}
	build, ok := demos[cfg.Demo]
	if !ok {
		return nil, errors.WithHintf(errors.Wrapf(ErrUnknownDemo, "%q", cfg.Demo), "available demos: %v", Names())
	}
	return build(cfg), nil
}
