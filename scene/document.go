// Package scene is the in-process document model owned by the host
// application: a flat set of named transform objects and a material list.
//
// Mutating methods must only be called on the owner thread. The document also
// guards its state with a read/write lock so read-only queries served from
// connection goroutines never observe a half-applied mutation.
package scene

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrInvalidName = errors.New("invalid object name")
)

type Vec3 [3]float64

func (v Vec3) Slice() []float64 {
	return []float64{v[0], v[1], v[2]}
}

// Kind is the primitive an object was created from.
type Kind string

const (
	KindCube     Kind = "CUBE"
	KindSphere   Kind = "SPHERE"
	KindCylinder Kind = "CYLINDER"
	KindPlane    Kind = "PLANE"
	KindCone     Kind = "CONE"
	KindTorus    Kind = "TORUS"
	KindEmpty    Kind = "EMPTY"
	KindCamera   Kind = "CAMERA"
	KindLight    Kind = "LIGHT"
)

var kindBaseNames = map[Kind]string{
	KindCube:     "pCube",
	KindSphere:   "pSphere",
	KindCylinder: "pCylinder",
	KindPlane:    "pPlane",
	KindCone:     "pCone",
	KindTorus:    "pTorus",
	KindEmpty:    "null",
	KindCamera:   "camera",
	KindLight:    "pointLight",
}

// ParseKind matches a primitive type name case-insensitively.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := kindBaseNames[k]
	return k, ok
}

// Kinds lists the supported primitives in a stable order.
func Kinds() []Kind {
	return []Kind{KindCube, KindSphere, KindCylinder, KindPlane, KindCone, KindTorus, KindEmpty, KindCamera, KindLight}
}

type Object struct {
	Name     string
	Kind     Kind
	Location Vec3
	Rotation Vec3 // Euler XYZ, degrees
	Scale    Vec3
	Visible  bool
}

// CreateSpec describes a new object. Nil transform fields take the defaults:
// origin, no rotation, unit scale.
type CreateSpec struct {
	Kind     Kind
	Name     string
	Location *Vec3
	Rotation *Vec3
	Scale    *Vec3
}

// Modification holds the fields to change; nil fields are left alone.
type Modification struct {
	Location *Vec3
	Rotation *Vec3
	Scale    *Vec3
	Visible  *bool
}

type Document struct {
	mu        sync.RWMutex
	name      string
	objects   map[string]*Object
	order     []string
	materials []string
}

// NewDocument returns an empty document. An empty name reports as "untitled".
func NewDocument(name string) *Document {
	return &Document{name: name, objects: make(map[string]*Object)}
}

func (d *Document) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.name == "" {
		return "untitled"
	}
	return d.name
}

func (d *Document) SetName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = name
}

// Create adds an object and returns it under its final, unique name.
func (d *Document) Create(spec CreateSpec) (Object, error) {
	if spec.Kind == "" {
		spec.Kind = KindCube
	}
	base, ok := kindBaseNames[spec.Kind]
	if !ok {
		return Object{}, fmt.Errorf("unsupported object type %q", spec.Kind)
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		name = base + "1"
	}
	if strings.ContainsAny(name, " \t\n|") {
		return Object{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	obj := &Object{Kind: spec.Kind, Scale: Vec3{1, 1, 1}, Visible: true}
	if spec.Location != nil {
		obj.Location = *spec.Location
	}
	if spec.Rotation != nil {
		obj.Rotation = *spec.Rotation
	}
	if spec.Scale != nil {
		obj.Scale = *spec.Scale
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	obj.Name = d.uniqueName(name)
	d.objects[obj.Name] = obj
	d.order = append(d.order, obj.Name)
	return *obj, nil
}

// uniqueName resolves clashes the way the host does: bump the trailing number.
func (d *Document) uniqueName(name string) string {
	if _, taken := d.objects[name]; !taken {
		return name
	}
	stem := strings.TrimRight(name, "0123456789")
	n := 1
	if suffix := name[len(stem):]; suffix != "" {
		n, _ = strconv.Atoi(suffix)
	}
	for {
		n++
		candidate := stem + strconv.Itoa(n)
		if _, taken := d.objects[candidate]; !taken {
			return candidate
		}
	}
}

func (d *Document) Modify(name string, m Modification) (Object, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	obj, ok := d.objects[name]
	if !ok {
		return Object{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if m.Location != nil {
		obj.Location = *m.Location
	}
	if m.Rotation != nil {
		obj.Rotation = *m.Rotation
	}
	if m.Scale != nil {
		obj.Scale = *m.Scale
	}
	if m.Visible != nil {
		obj.Visible = *m.Visible
	}
	return *obj, nil
}

func (d *Document) Delete(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.objects[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(d.objects, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return nil
}

func (d *Document) Get(name string) (Object, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	obj, ok := d.objects[name]
	if !ok {
		return Object{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return *obj, nil
}

// List returns copies of all objects in creation order.
func (d *Document) List() []Object {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Object, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, *d.objects[name])
	}
	return out
}

func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.objects)
}

func (d *Document) AddMaterial(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.materials {
		if m == name {
			return
		}
	}
	d.materials = append(d.materials, name)
}

func (d *Document) Materials() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := append([]string(nil), d.materials...)
	sort.Strings(out)
	return out
}
