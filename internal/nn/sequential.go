package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/chirality/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input; Backward walks the
// chain in reverse.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(64, 128, rng),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 1, rng),
//	)
//
//	output := model.Forward(input)
type Sequential struct {
	modules []Module
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(input *tensor.Tensor) *tensor.Tensor {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Backward propagates gradOutput through the modules in reverse order.
func (s *Sequential) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	grad := gradOutput
	for i := len(s.modules) - 1; i >= 0; i-- {
		grad = s.modules[i].Backward(grad)
	}
	return grad
}

// Parameters returns all trainable parameters from all modules.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Add appends a module to the sequence.
func (s *Sequential) Add(module Module) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential) Module(index int) Module {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index]
}

// StateDict returns a map of parameter names to tensors.
//
// Parameters are prefixed with their module index (e.g., "0.conv3d.weight",
// "7.bias") to avoid name collisions.
func (s *Sequential) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	for i, module := range s.modules {
		for _, p := range module.Parameters() {
			stateDict[fmt.Sprintf("%d.%s", i, p.Name())] = p.Tensor()
		}
	}
	return stateDict
}

// String lists the modules one per line.
func (s *Sequential) String() string {
	var b strings.Builder
	b.WriteString("Sequential(\n")
	for i, module := range s.modules {
		fmt.Fprintf(&b, "  (%d): %v\n", i, module)
	}
	b.WriteString(")")
	return b.String()
}
