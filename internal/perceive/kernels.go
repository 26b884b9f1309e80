package perceive

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrKernelExists   = errors.New("kernel already registered")
	ErrKernelNotFound = errors.New("kernel not found")
)

// Kernel is a 3x3 stencil stored row-major, indexed [dy+1][dx+1].
type Kernel [9]float32

const (
	KernelIdentity  = "identity"
	KernelSobelX    = "sobel_x"
	KernelSobelY    = "sobel_y"
	KernelLaplacian = "laplacian"
	KernelMooreSum  = "moore_sum"
)

// DefaultKernels is the classic growing-automaton perception filter bank.
var DefaultKernels = []string{KernelIdentity, KernelSobelX, KernelSobelY}

var kernelRegistry = struct {
	mu sync.RWMutex
	m  map[string]Kernel
}{
	m: make(map[string]Kernel),
}

func init() {
	initializeDefaultKernels()
}

func initializeDefaultKernels() {
	mustRegisterKernel(KernelIdentity, Kernel{
		0, 0, 0,
		0, 1, 0,
		0, 0, 0,
	})
	mustRegisterKernel(KernelSobelX, Kernel{
		-1, 0, 1,
		-2, 0, 2,
		-1, 0, 1,
	}.Scaled(1.0/8))
	mustRegisterKernel(KernelSobelY, Kernel{
		-1, -2, -1,
		0, 0, 0,
		1, 2, 1,
	}.Scaled(1.0/8))
	mustRegisterKernel(KernelLaplacian, Kernel{
		1, 2, 1,
		2, -12, 2,
		1, 2, 1,
	}.Scaled(1.0/16))
	mustRegisterKernel(KernelMooreSum, Kernel{
		1, 1, 1,
		1, 0, 1,
		1, 1, 1,
	})
}

// Scaled returns k with every tap multiplied by factor.
func (k Kernel) Scaled(factor float32) Kernel {
	for i := range k {
		k[i] *= factor
	}
	return k
}

func RegisterKernel(name string, kernel Kernel) error {
	if name == "" {
		return errors.New("kernel name is required")
	}

	kernelRegistry.mu.Lock()
	defer kernelRegistry.mu.Unlock()
	if _, exists := kernelRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrKernelExists, name)
	}
	kernelRegistry.m[name] = kernel
	return nil
}

func mustRegisterKernel(name string, kernel Kernel) {
	if err := RegisterKernel(name, kernel); err != nil {
		panic(err)
	}
}

func ResolveKernel(name string) (Kernel, error) {
	kernelRegistry.mu.RLock()
	kernel, ok := kernelRegistry.m[name]
	kernelRegistry.mu.RUnlock()
	if !ok {
		return Kernel{}, fmt.Errorf("%w: %s", ErrKernelNotFound, name)
	}
	return kernel, nil
}

func ListKernels() []string {
	kernelRegistry.mu.RLock()
	defer kernelRegistry.mu.RUnlock()
	names := make([]string, 0, len(kernelRegistry.m))
	for name := range kernelRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetKernelsForTests() {
	kernelRegistry.mu.Lock()
	kernelRegistry.m = make(map[string]Kernel)
	kernelRegistry.mu.Unlock()
	initializeDefaultKernels()
}
