// Package scene provides the engines' view of the surrounding 3D scene:
// object lookup by name or tag, and highlight effects on those objects.
package scene

import "sync"

// Object is a handle to a scene object. Handles are compared by identity;
// the registry returns the same handle for repeated lookups of one name.
type Object struct {
	Name string
	Tags []string
}

// HasTag reports whether the object carries the given tag.
func (o *Object) HasTag(tag string) bool {
	for _, t := range o.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Resolver looks up scene objects. A miss returns nil, never an error.
type Resolver interface {
	FindByName(name string) *Object
	FindAllWithTag(tag string) []*Object
}

// Registry is an in-memory Resolver.
type Registry struct {
	mu      sync.RWMutex
	objects map[string]*Object
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{objects: make(map[string]*Object)}
}

// Add registers an object by name, replacing any previous entry, and
// returns its handle.
func (r *Registry) Add(name string, tags ...string) *Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := &Object{Name: name, Tags: tags}
	r.objects[name] = obj
	return obj
}

// FindByName implements Resolver.
func (r *Registry) FindByName(name string) *Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.objects[name]
}

// FindAllWithTag implements Resolver.
func (r *Registry) FindAllWithTag(tag string) []*Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Object
	for _, obj := range r.objects {
		if obj.HasTag(tag) {
			out = append(out, obj)
		}
	}
	return out
}
