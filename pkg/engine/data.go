package engine

import "reflect"

// Data holds a single typed value owned by a DataPool. The identifier and
// structure name record which catalog variable the value belongs to and which
// storage structure produced it. Values are treated as immutable once pooled;
// mutation goes through DataPool.Replace.
type Data struct {
	id        string
	structure string
	value     any
}

// NewData creates a pooled value for the given variable identifier and
// structure class name.
func NewData(identifier, structureName string, value any) *Data {
	return &Data{
		id:        identifier,
		structure: structureName,
		value:     value,
	}
}

// ID returns the variable identifier the value belongs to.
func (d *Data) ID() string {
	return d.id
}

// StructureName returns the storage structure class name.
func (d *Data) StructureName() string {
	return d.structure
}

// Value returns the stored value. Callers must not mutate it.
func (d *Data) Value() any {
	return d.value
}

// DeepCopy returns an independent copy of the data, including a deep copy of
// any slices or maps inside the value.
func (d *Data) DeepCopy() *Data {
	return &Data{
		id:        d.id,
		structure: d.structure,
		value:     DeepCopyValue(d.value),
	}
}

// Equal reports whether two data values carry the same identifier, structure
// and value. Used for cross-pool import deduplication.
func (d *Data) Equal(other *Data) bool {
	if other == nil {
		return false
	}
	return d.id == other.id &&
		d.structure == other.structure &&
		reflect.DeepEqual(d.value, other.value)
}

// DeepCopyValue copies a value, recursing into slices, maps, pointers and
// interfaces. Struct values are copied by assignment; structures storing
// reference types inside opaque structs must provide copies themselves.
func DeepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	return deepCopyReflect(reflect.ValueOf(v)).Interface()
}

func deepCopyReflect(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopyReflect(v.Index(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), deepCopyReflect(iter.Value()))
		}
		return out
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(deepCopyReflect(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		elem := deepCopyReflect(v.Elem())
		out := reflect.New(v.Type()).Elem()
		out.Set(elem)
		return out
	default:
		return v
	}
}
