package store

import (
	"strconv"
	"strings"
)

// Kind enumerates the scalar types the codec auto-detects.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindFloat
	KindFraction
	KindPercent
)

// Value is a typed scalar decoded from a `Key: Value` field. Exactly one of
// the payload fields is meaningful, selected by Kind. Fractions keep their
// numerator/denominator; percentages are stored as a fraction of 1.
type Value struct {
	Kind  Kind
	Str   string
	Bool  bool
	Int   int64
	Float float64
	Num   int64
	Den   int64
}

func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value  { return Value{Kind: KindFloat, Float: f} }
func PercentValue(f float64) Value { return Value{Kind: KindPercent, Float: f} }

func FractionValue(num, den int64) Value {
	return Value{Kind: KindFraction, Num: num, Den: den}
}

// ParseValue decodes a raw field value into its typed form. Unrecognized
// text stays a string; parsing never fails.
func ParseValue(raw string) Value {
	s := strings.TrimSpace(raw)
	switch s {
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FloatValue(f)
	}
	if num, den, ok := parseFraction(s); ok {
		return FractionValue(num, den)
	}
	if p, ok := strings.CutSuffix(s, "%"); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err == nil {
			return PercentValue(f / 100)
		}
	}
	return StringValue(s)
}

func parseFraction(s string) (num, den int64, ok bool) {
	a, b, found := strings.Cut(s, "/")
	if !found {
		return 0, 0, false
	}
	num, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	den, err = strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if err != nil || den == 0 {
		return 0, 0, false
	}
	return num, den, true
}

// String renders the value in its encoded document form.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindFraction:
		return strconv.FormatInt(v.Num, 10) + "/" + strconv.FormatInt(v.Den, 10)
	case KindPercent:
		return strconv.FormatFloat(v.Float*100, 'f', -1, 64) + "%"
	default:
		return v.Str
	}
}

// AsFloat converts any numeric kind to a float64. Booleans map to 0/1,
// strings to 0.
func (v Value) AsFloat() float64 {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return 1
		}
		return 0
	case KindInt:
		return float64(v.Int)
	case KindFloat, KindPercent:
		return v.Float
	case KindFraction:
		if v.Den == 0 {
			return 0
		}
		return float64(v.Num) / float64(v.Den)
	default:
		return 0
	}
}

// AsInt converts numeric kinds to int64, truncating toward zero.
func (v Value) AsInt() int64 {
	if v.Kind == KindInt {
		return v.Int
	}
	return int64(v.AsFloat())
}

// AsBool reports true only for an explicit boolean true.
func (v Value) AsBool() bool {
	return v.Kind == KindBool && v.Bool
}

// Field is one ordered `Key: Value` line of a section.
type Field struct {
	Key   string
	Value Value
}

// Section is one `## Name` block: ordered fields, a bullet list, and table
// rows, any of which may be empty.
type Section struct {
	Name   string
	Fields []Field
	Items  []string
	Rows   [][]string
}

// Get returns the value for key and whether it was present.
func (s *Section) Get(key string) (Value, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Set updates the value for key in place, or appends a new field.
func (s *Section) Set(key string, v Value) {
	for i, f := range s.Fields {
		if f.Key == key {
			s.Fields[i].Value = v
			return
		}
	}
	s.Fields = append(s.Fields, Field{Key: key, Value: v})
}

// Delete removes the field for key, reporting whether it existed.
func (s *Section) Delete(key string) bool {
	for i, f := range s.Fields {
		if f.Key == key {
			s.Fields = append(s.Fields[:i], s.Fields[i+1:]...)
			return true
		}
	}
	return false
}

// HasItem reports whether the bullet list contains item.
func (s *Section) HasItem(item string) bool {
	for _, it := range s.Items {
		if it == item {
			return true
		}
	}
	return false
}

// AddItem appends item to the bullet list unless already present.
// Reports whether the list changed.
func (s *Section) AddItem(item string) bool {
	if s.HasItem(item) {
		return false
	}
	s.Items = append(s.Items, item)
	return true
}

// RemoveItem removes item from the bullet list, reporting whether it
// existed.
func (s *Section) RemoveItem(item string) bool {
	for i, it := range s.Items {
		if it == item {
			s.Items = append(s.Items[:i], s.Items[i+1:]...)
			return true
		}
	}
	return false
}

// Document is an ordered list of sections. The zero value is an empty
// document, which is also what Store.Get returns for a missing name.
type Document struct {
	Sections []*Section
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{}
}

// Section returns the named section, or nil when absent.
func (d *Document) Section(name string) *Section {
	for _, s := range d.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// EnsureSection returns the named section, appending an empty one first if
// needed.
func (d *Document) EnsureSection(name string) *Section {
	if s := d.Section(name); s != nil {
		return s
	}
	s := &Section{Name: name}
	d.Sections = append(d.Sections, s)
	return s
}

// Empty reports whether the document has no content at all.
func (d *Document) Empty() bool {
	for _, s := range d.Sections {
		if len(s.Fields) > 0 || len(s.Items) > 0 || len(s.Rows) > 0 {
			return false
		}
	}
	return true
}
