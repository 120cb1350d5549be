package steps

import (
	"github.com/aretw0/weave/pkg/registry"
)

const (
	TypeTransform = "transform"
	TypeFilter    = "filter"
	TypeSplit     = "split"

	MethodTemplate  = "template"
	MethodLength    = "length"
	MethodSeparator = "separator"
)

// Register adds every built-in step implementation to reg.
func Register(reg *registry.Registry) {
	reg.Register(TypeTransform, MethodTemplate, NewTemplate)
	reg.Register(TypeFilter, MethodLength, NewLength)
	reg.Register(TypeSplit, MethodSeparator, NewSeparator)
}

// Default returns a registry holding the built-in steps.
func Default() *registry.Registry {
	reg := registry.NewRegistry()
	Register(reg)
	return reg
}
