package field

import (
	"fmt"
	"sync"
)

// NotFoundError is returned when a named field is absent from a registry,
// has the wrong rank or does not match the mesh.
type NotFoundError struct {
	Name   string
	Want   string
	Reason string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s field %q: %s", e.Want, e.Name, e.Reason)
}

// Registry gives read-only access to the current fields of a host by name
type Registry interface {
	LookupScalar(name string) (*ScalarField, error)
	LookupVector(name string) (*VectorField, error)
}

// ObjectRegistry is an in-memory Registry. Store replaces any field of the
// same name.
type ObjectRegistry struct {
	mu      sync.RWMutex
	scalars map[string]*ScalarField
	vectors map[string]*VectorField
}

// NewObjectRegistry returns an empty registry
func NewObjectRegistry() *ObjectRegistry {
	return &ObjectRegistry{
		scalars: make(map[string]*ScalarField),
		vectors: make(map[string]*VectorField),
	}
}

// StoreScalar publishes f under f.Name
func (r *ObjectRegistry) StoreScalar(f *ScalarField) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.vectors, f.Name)
	r.scalars[f.Name] = f
}

// StoreVector publishes f under f.Name
func (r *ObjectRegistry) StoreVector(f *VectorField) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scalars, f.Name)
	r.vectors[f.Name] = f
}

// LookupScalar returns the named scalar field
func (r *ObjectRegistry) LookupScalar(name string) (*ScalarField, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if f, ok := r.scalars[name]; ok {
		return f, nil
	}
	if _, ok := r.vectors[name]; ok {
		return nil, &NotFoundError{Name: name, Want: "scalar", Reason: "registered as a vector field"}
	}
	return nil, &NotFoundError{Name: name, Want: "scalar", Reason: "not registered"}
}

// LookupVector returns the named vector field
func (r *ObjectRegistry) LookupVector(name string) (*VectorField, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if f, ok := r.vectors[name]; ok {
		return f, nil
	}
	if _, ok := r.scalars[name]; ok {
		return nil, &NotFoundError{Name: name, Want: "vector", Reason: "registered as a scalar field"}
	}
	return nil, &NotFoundError{Name: name, Want: "vector", Reason: "not registered"}
}
