// Package commands is the host integration: the command table a bridge server
// exposes over the live scene document.
package commands

import (
	"context"
	"log/slog"

	"github.com/mbocsi/hostbridge/scene"
	"github.com/mbocsi/hostbridge/server"
)

// MaxSceneObjects caps the objects listed by get_scene_info.
const MaxSceneObjects = 10

// HostInfo identifies the host application in about responses.
type HostInfo struct {
	Name    string
	Version string
}

// Host serves commands against one document.
type Host struct {
	doc    *scene.Document
	info   HostInfo
	events *server.Broker
}

func NewHost(doc *scene.Document, info HostInfo) *Host {
	return &Host{doc: doc, info: info}
}

// PublishTo makes successful mutations publish on server.SceneTopic.
func (h *Host) PublishTo(b *server.Broker) {
	h.events = b
}

func (h *Host) publish(typ string, data map[string]any) {
	h.events.Publish(server.Event{Topic: server.SceneTopic, Type: typ, Data: data})
}

// Register adds every host command to reg. Scene mutations are routed through
// the owner thread by the registry's mutating set.
func (h *Host) Register(reg *server.CommandRegistry) {
	reg.Register("about", h.About)
	reg.Register("get_scene_info", h.GetSceneInfo)
	reg.Register("get_object_info", h.GetObjectInfo)
	reg.Register("create_object", h.CreateObject)
	reg.Register("modify_object", h.ModifyObject)
	reg.Register("delete_object", h.DeleteObject)
}

func (h *Host) About(ctx context.Context, params map[string]any) (map[string]any, error) {
	return map[string]any{
		"enabled":      true,
		"name":         h.info.Name,
		"version":      h.info.Version,
		"object_count": h.doc.Len(),
	}, nil
}

func (h *Host) GetSceneInfo(ctx context.Context, params map[string]any) (map[string]any, error) {
	objs := h.doc.List()

	listed := make([]map[string]any, 0, min(len(objs), MaxSceneObjects))
	for i, o := range objs {
		if i >= MaxSceneObjects {
			break
		}
		listed = append(listed, map[string]any{
			"name": o.Name,
			"type": string(o.Kind),
			"location": []float64{
				scene.Round(o.Location[0], 2),
				scene.Round(o.Location[1], 2),
				scene.Round(o.Location[2], 2),
			},
		})
	}

	slog.Debug("Scene info collected", "objects", len(listed), "total", len(objs))
	return map[string]any{
		"name":            h.doc.Name(),
		"object_count":    len(objs),
		"objects":         listed,
		"materials_count": len(h.doc.Materials()),
	}, nil
}

func (h *Host) GetObjectInfo(ctx context.Context, params map[string]any) (map[string]any, error) {
	name, err := requiredString(params, "name")
	if err != nil {
		return nil, err
	}
	obj, err := h.doc.Get(name)
	if err != nil {
		return nil, fromScene(name, err)
	}

	bbox := obj.BoundingBox()
	return map[string]any{
		"name":               obj.Name,
		"type":               string(obj.Kind),
		"location":           obj.Location.Slice(),
		"rotation":           obj.Rotation.Slice(),
		"scale":              obj.Scale.Slice(),
		"visibility":         obj.Visible,
		"world_bounding_box": bbox[:],
	}, nil
}

// CreateObject adds a primitive. A type that is not a primitive keyword is
// taken as the object's name and a cube is created, so {"type":"pCube1"}
// yields an object named pCube1.
func (h *Host) CreateObject(ctx context.Context, params map[string]any) (map[string]any, error) {
	typ, err := stringParam(params, "type", string(scene.KindCube))
	if err != nil {
		return nil, err
	}
	name, err := stringParam(params, "name", "")
	if err != nil {
		return nil, err
	}

	kind, known := scene.ParseKind(typ)
	if !known {
		kind = scene.KindCube
		if name == "" {
			name = typ
		}
	}

	spec := scene.CreateSpec{Kind: kind, Name: name}
	if spec.Location, err = vec3Param(params, "location"); err != nil {
		return nil, err
	}
	if spec.Rotation, err = vec3Param(params, "rotation"); err != nil {
		return nil, err
	}
	if spec.Scale, err = vec3Param(params, "scale"); err != nil {
		return nil, err
	}

	obj, err := h.doc.Create(spec)
	if err != nil {
		return nil, fromScene(name, err)
	}
	slog.Info("Object created", "name", obj.Name, "type", obj.Kind)
	h.publish("object_created", map[string]any{"name": obj.Name, "type": string(obj.Kind)})

	return map[string]any{
		"name":     obj.Name,
		"location": obj.Location.Slice(),
	}, nil
}

func (h *Host) ModifyObject(ctx context.Context, params map[string]any) (map[string]any, error) {
	name, err := requiredString(params, "name")
	if err != nil {
		return nil, err
	}

	var m scene.Modification
	if m.Location, err = vec3Param(params, "location"); err != nil {
		return nil, err
	}
	if m.Rotation, err = vec3Param(params, "rotation"); err != nil {
		return nil, err
	}
	if m.Scale, err = vec3Param(params, "scale"); err != nil {
		return nil, err
	}
	if m.Visible, err = boolParam(params, "visibility"); err != nil {
		return nil, err
	}
	if m.Visible == nil {
		if m.Visible, err = boolParam(params, "visible"); err != nil {
			return nil, err
		}
	}

	obj, err := h.doc.Modify(name, m)
	if err != nil {
		return nil, fromScene(name, err)
	}
	slog.Info("Object modified", "name", obj.Name)
	h.publish("object_modified", map[string]any{"name": obj.Name})

	return map[string]any{
		"name":       obj.Name,
		"location":   obj.Location.Slice(),
		"rotation":   obj.Rotation.Slice(),
		"scale":      obj.Scale.Slice(),
		"visibility": obj.Visible,
	}, nil
}

func (h *Host) DeleteObject(ctx context.Context, params map[string]any) (map[string]any, error) {
	name, err := requiredString(params, "name")
	if err != nil {
		return nil, err
	}
	if err := h.doc.Delete(name); err != nil {
		return nil, fromScene(name, err)
	}
	slog.Info("Object deleted", "name", name)
	h.publish("object_deleted", map[string]any{"name": name})

	return map[string]any{"name": name, "deleted": true}, nil
}
