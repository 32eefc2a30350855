// ABOUTME: Data models for configuration items, types, and locations
// ABOUTME: Defines Object, Field, Location, Type, ObjectPatch, and FailureRecord structs
package models

import (
	"time"
)

// Collection names used by the document store.
const (
	CollectionObjects   = "objects"
	CollectionLocations = "locations"
	CollectionTypes     = "types"
)

// InitialVersion is the version every object starts at.
const InitialVersion = "1.0.0"

// RootParent marks a location that has no parent.
const RootParent int64 = 0

// Location type discriminators.
const (
	LocationTypeRoot   = "location root"
	LocationTypeObject = "object location"
)

type Field struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

type Object struct {
	PublicID     int64      `json:"public_id"`
	TypeID       int64      `json:"type_id"`
	Version      string     `json:"version"`
	Active       bool       `json:"active"`
	AuthorID     int64      `json:"author_id"`
	EditorID     *int64     `json:"editor_id,omitempty"`
	CreationTime time.Time  `json:"creation_time"`
	LastEditTime *time.Time `json:"last_edit_time,omitempty"`
	Views        int64      `json:"views"`
	Fields       []Field    `json:"fields"`
}

// Clone returns a deep copy of the object header and its field list.
// Field values are shared; they are treated as immutable.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := *o
	c.Fields = append([]Field(nil), o.Fields...)
	if o.EditorID != nil {
		id := *o.EditorID
		c.EditorID = &id
	}
	if o.LastEditTime != nil {
		ts := *o.LastEditTime
		c.LastEditTime = &ts
	}
	return &c
}

// FieldNames returns the object's field names in stored order.
func (o *Object) FieldNames() []string {
	names := make([]string, len(o.Fields))
	for i, f := range o.Fields {
		names[i] = f.Name
	}
	return names
}

// Location places an object into the parent/child hierarchy.
type Location struct {
	PublicID int64  `json:"public_id"`
	ObjectID int64  `json:"object_id"`
	Parent   int64  `json:"parent"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
}

// IsRoot reports whether the location hangs directly off the root sentinel.
func (l Location) IsRoot() bool {
	return l.Parent == RootParent
}

type TypeField struct {
	Name  string      `json:"name"`
	Label string      `json:"label,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

// Type declares the legal field names (and defaults) for objects of that type.
type Type struct {
	PublicID int64       `json:"public_id"`
	Name     string      `json:"name"`
	Label    string      `json:"label,omitempty"`
	Active   bool        `json:"active"`
	AuthorID int64       `json:"author_id"`
	Fields   []TypeField `json:"fields"`
}

// FieldNames returns the declared field names in declaration order.
func (t *Type) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// ObjectPatch is a proposed change to a stored object. Nil pointers mean
// "keep the stored value".
type ObjectPatch struct {
	TypeID  *int64  `json:"type_id,omitempty"`
	Active  *bool   `json:"active,omitempty"`
	Version *string `json:"version,omitempty"`
	Fields  []Field `json:"fields,omitempty"`
	Comment string  `json:"comment,omitempty"`
}

// NewObject carries the caller-supplied part of an object insert.
type NewObject struct {
	PublicID *int64  `json:"public_id,omitempty"`
	TypeID   int64   `json:"type_id"`
	Active   *bool   `json:"active,omitempty"`
	Fields   []Field `json:"fields"`
}

// FailureRecord describes one id of a batch operation that could not be applied.
// Collection names the collection PublicID belongs to.
type FailureRecord struct {
	PublicID   int64   `json:"public_id"`
	Collection string  `json:"collection"`
	Message    string  `json:"error_message"`
	Status     int     `json:"status"`
	Object     *Object `json:"obj,omitempty"`
}

// UpdateResult partitions the ids of a batch update.
type UpdateResult struct {
	Results []Object        `json:"results"`
	Failed  []FailureRecord `json:"failed"`
}

// CascadeResult reports what a cascade delete removed and which individual
// deletions failed along the way.
type CascadeResult struct {
	ObjectID         int64           `json:"object_id"`
	DeletedLocations []int64         `json:"deleted_locations"`
	DeletedObjects   []int64         `json:"deleted_objects"`
	Failed           []FailureRecord `json:"failed,omitempty"`
}
