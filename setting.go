// This file is part of the program "xsettings".
// Please see the LICENSE file for copyright information.

package xsettings

import (
	"bytes"
	"fmt"
	"strconv"
)

// Type is the wire tag of a setting value.
type Type uint8

const (
	TypeInt    Type = 0
	TypeString Type = 1
	TypeColor  Type = 2
	// TypeNone marks a value whose type is unknown. Decode never produces it.
	TypeNone Type = 0xff
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeString:
		return "string"
	case TypeColor:
		return "color"
	case TypeNone:
		return "none"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Color is a color with 16 bits per channel.
type Color struct {
	Red, Green, Blue, Alpha uint16
}

func (c Color) String() string {
	return fmt.Sprintf("rgba(%d, %d, %d, %d)", c.Red, c.Green, c.Blue, c.Alpha)
}

// Value is a typed setting value. The zero Value is the integer 0.
type Value struct {
	typ Type
	i   int32
	s   []byte
	c   Color
}

func IntValue(v int32) Value { return Value{typ: TypeInt, i: v} }

// StringValue wraps b without copying it. String payloads are opaque bytes
// and need not be valid UTF-8.
func StringValue(b []byte) Value { return Value{typ: TypeString, s: b} }

func ColorValue(c Color) Value { return Value{typ: TypeColor, c: c} }

func NoneValue() Value { return Value{typ: TypeNone} }

func (v Value) Type() Type { return v.typ }

func (v Value) Int() (int32, bool) { return v.i, v.typ == TypeInt }

// Bytes returns the string payload. The slice may alias a decode buffer;
// callers that keep it must copy it.
func (v Value) Bytes() ([]byte, bool) { return v.s, v.typ == TypeString }

func (v Value) Color() (Color, bool) { return v.c, v.typ == TypeColor }

// Equal reports whether v and o have the same type and payload.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeInt:
		return v.i == o.i
	case TypeString:
		return bytes.Equal(v.s, o.s)
	case TypeColor:
		return v.c == o.c
	}
	return true
}

func (v Value) clone() Value {
	if v.typ == TypeString {
		v.s = append([]byte{}, v.s...)
	}
	return v
}

func (v Value) String() string {
	switch v.typ {
	case TypeInt:
		return strconv.FormatInt(int64(v.i), 10)
	case TypeString:
		return strconv.Quote(string(v.s))
	case TypeColor:
		return v.c.String()
	}
	return "<" + v.typ.String() + ">"
}

// Setting is a named value together with the serial of the blob in which it
// last changed. A Setting returned by Client.GetSetting or SettingView.Copy
// owns its payload; Settings produced by Decode alias the decoded buffer.
type Setting struct {
	Name   string
	Value  Value
	Serial uint32
}

// Equal compares name, type and value. Serials are ignored.
func (s Setting) Equal(o Setting) bool {
	return s.Name == o.Name && s.Value.Equal(o.Value)
}

// Clone returns a deep copy of s that shares no memory with it.
func (s Setting) Clone() Setting {
	s.Value = s.Value.clone()
	return s
}

func (s Setting) String() string {
	return s.Name + "=" + s.Value.String()
}

// SettingView is a borrowed, read-only view of a setting in a client's
// snapshot. It is only valid until the callback it was passed to returns;
// any use after that panics. Use Copy to keep a setting.
type SettingView struct {
	s  *Setting
	sc *scope
}

func (v SettingView) get() *Setting {
	if v.s == nil {
		panic("xsettings: use of zero SettingView")
	}
	if v.sc.expired() {
		panic("xsettings: SettingView used after its callback returned")
	}
	return v.s
}

func (v SettingView) Name() string { return v.get().Name }

func (v SettingView) Type() Type { return v.get().Value.typ }

// Value returns the borrowed value. Its byte payload must not be retained.
func (v SettingView) Value() Value { return v.get().Value }

func (v SettingView) Serial() uint32 { return v.get().Serial }

// Copy returns an owned Setting that outlives the view.
func (v SettingView) Copy() Setting { return v.get().Clone() }

func (v SettingView) Equal(o Setting) bool { return v.get().Equal(o) }

func (v SettingView) String() string { return v.get().String() }
