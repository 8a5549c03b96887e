package bridge

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Kind is the variant held by a Value.
type Kind uint8

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindName
	KindEnum
	KindStruct
	KindArray
	KindObject
	KindSentinel
)

var kindNames = [...]string{"None", "Bool", "Int", "Float", "String", "Name", "Enum", "Struct", "Array", "Object", "Sentinel"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ErrUnsupported means a Go value has no host representation.
var ErrUnsupported = errors.New("unsupported host value")

// Name is an engine name, interned on the native side.
type Name string

// Enum is a value of a named engine enum.
type Enum struct {
	Type  string
	Value int64
}

// Struct is a copy of a native struct, by field.
type Struct struct {
	Type   string
	Fields map[string]Value
}

// Object refers to a live engine object. The address is only valid while
// the engine keeps the object alive.
type Object struct {
	Class string
	Addr  uintptr
}

type sentinel string

// Value is a value crossing between native code and the scripting host.
// The zero Value is None.
type Value struct {
	kind Kind
	num  uint64
	any  any
}

// Block is returned by a callback to suppress the native behaviour.
var Block = Value{kind: KindSentinel, any: sentinel("block")}

// IsBlock reports whether v is the block sentinel.
func IsBlock(v Value) bool {
	return v.kind == KindSentinel && v.any == Block.any
}

func None() Value { return Value{} }

func BoolValue(b bool) Value {
	var n uint64
	if b {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

func IntValue(i int64) Value { return Value{kind: KindInt, num: uint64(i)} }

func FloatValue(f float64) Value { return Value{kind: KindFloat, num: math.Float64bits(f)} }

func StringValue(s string) Value { return Value{kind: KindString, any: s} }

func NameValue(n Name) Value { return Value{kind: KindName, any: n} }

func EnumValue(e Enum) Value { return Value{kind: KindEnum, any: e} }

func StructValue(s Struct) Value { return Value{kind: KindStruct, any: s} }

func ArrayValue(items ...Value) Value { return Value{kind: KindArray, any: items} }

func ObjectValue(o Object) Value { return Value{kind: KindObject, any: o} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNone() bool { return v.kind == KindNone }

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("bridge: Value kind is %s, not %s", v.kind, k))
	}
}

func (v Value) Bool() bool {
	v.mustBe(KindBool)
	return v.num == 1
}

func (v Value) Int() int64 {
	v.mustBe(KindInt)
	return int64(v.num)
}

func (v Value) Float() float64 {
	v.mustBe(KindFloat)
	return math.Float64frombits(v.num)
}

func (v Value) Str() string {
	v.mustBe(KindString)
	return v.any.(string)
}

func (v Value) Name() Name {
	v.mustBe(KindName)
	return v.any.(Name)
}

func (v Value) Enum() Enum {
	v.mustBe(KindEnum)
	return v.any.(Enum)
}

func (v Value) Struct() Struct {
	v.mustBe(KindStruct)
	return v.any.(Struct)
}

func (v Value) Array() []Value {
	v.mustBe(KindArray)
	return v.any.([]Value)
}

func (v Value) Object() Object {
	v.mustBe(KindObject)
	return v.any.(Object)
}

// ValueOf converts a Go value coming from the scripting host.
func ValueOf(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return None(), nil
	case Value:
		return x, nil
	case bool:
		return BoolValue(x), nil
	case string:
		return StringValue(x), nil
	case Name:
		return NameValue(x), nil
	case Enum:
		return EnumValue(x), nil
	case Struct:
		return StructValue(x), nil
	case Object:
		return ObjectValue(x), nil
	case []Value:
		return ArrayValue(x...), nil
	case []any:
		items := make([]Value, len(x))
		for i := range x {
			v, err := ValueOf(x[i])
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = v
		}
		return ArrayValue(items...), nil
	}
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return IntValue(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return FloatValue(rv.Float()), nil
	}
	return Value{}, fmt.Errorf("%T: %w", x, ErrUnsupported)
}

// Interface converts v back for the scripting host. Arrays become []any,
// the block sentinel is returned as Block itself.
func (v Value) Interface() any {
	switch v.kind {
	case KindNone:
		return nil
	case KindBool:
		return v.Bool()
	case KindInt:
		return v.Int()
	case KindFloat:
		return v.Float()
	case KindArray:
		items := v.Array()
		out := make([]any, len(items))
		for i := range items {
			out[i] = items[i].Interface()
		}
		return out
	case KindSentinel:
		return v
	}
	return v.any
}

func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "None"
	case KindString:
		return fmt.Sprintf("%q", v.Str())
	case KindArray:
		items := v.Array()
		s := make([]string, len(items))
		for i := range items {
			s[i] = items[i].String()
		}
		return "[" + strings.Join(s, ", ") + "]"
	case KindObject:
		o := v.Object()
		return fmt.Sprintf("%s@0x%x", o.Class, o.Addr)
	case KindEnum:
		e := v.Enum()
		return fmt.Sprintf("%s(%d)", e.Type, e.Value)
	case KindSentinel:
		return fmt.Sprintf("<%s>", v.any)
	}
	return fmt.Sprint(v.Interface())
}
