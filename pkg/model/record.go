package model

import (
	"sort"
	"strconv"
	"strings"
)

// Kind is the runtime type tag of a record property.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindNumber
	KindSelect
	KindMultiSelect
	KindDate
	KindRelation
	KindFormula
	KindRollup
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindSelect:
		return "select"
	case KindMultiSelect:
		return "multi_select"
	case KindDate:
		return "date"
	case KindRelation:
		return "relation"
	case KindFormula:
		return "formula"
	case KindRollup:
		return "rollup"
	}
	return "unknown"
}

// Value is a decoded property value. The zero Value is absent.
type Value struct {
	Kind    Kind
	Text    string
	Number  float64
	List    []string
	present bool
	numeric bool
}

// Absent returns the explicit absent marker for a property of the given kind.
// Writing an absent value clears the property.
func Absent(kind Kind) Value {
	return Value{Kind: kind}
}

func Text(kind Kind, s string) Value {
	return Value{Kind: kind, Text: s, present: true}
}

func Number(kind Kind, n float64) Value {
	return Value{Kind: kind, Number: n, present: true, numeric: true}
}

func List(kind Kind, items []string) Value {
	return Value{Kind: kind, List: items, present: true}
}

func (v Value) Present() bool { return v.present }

// Float returns the numeric payload, if any.
func (v Value) Float() (float64, bool) {
	if !v.present || !v.numeric {
		return 0, false
	}
	return v.Number, true
}

// Positive reports whether the value is a number strictly greater than zero.
func (v Value) Positive() bool {
	n, ok := v.Float()
	return ok && n > 0
}

// Contains reports whether the text payload or any list element contains sub.
func (v Value) Contains(sub string) bool {
	if !v.present {
		return false
	}
	if strings.Contains(v.Text, sub) {
		return true
	}
	for _, item := range v.List {
		if strings.Contains(item, sub) {
			return true
		}
	}
	return false
}

// Has reports whether the value equals s, or holds s as a list element.
func (v Value) Has(s string) bool {
	if !v.present {
		return false
	}
	if v.Text == s {
		return true
	}
	for _, item := range v.List {
		if item == s {
			return true
		}
	}
	return false
}

// Empty reports whether the value carries nothing a reader would see.
func (v Value) Empty() bool {
	if !v.present {
		return true
	}
	if v.numeric {
		return v.Number == 0
	}
	return v.Text == "" && len(v.List) == 0
}

// String renders the value for prompts and fingerprints.
func (v Value) String() string {
	if !v.present {
		return ""
	}
	if v.numeric {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	if v.List != nil {
		return "[" + strings.Join(v.List, " ") + "]"
	}
	return v.Text
}

// Record is a project or task held by the record store.
type Record struct {
	ID         string
	Properties map[string]Value
}

// Get returns the named property, or an absent value.
func (r Record) Get(name string) Value {
	if r.Properties == nil {
		return Value{}
	}
	return r.Properties[name]
}

// TextOr returns the text of the named property, or fallback when it is absent or blank.
func (r Record) TextOr(name, fallback string) string {
	v := r.Get(name)
	if !v.Present() || v.String() == "" {
		return fallback
	}
	return v.String()
}

// Names returns the property names in sorted order.
func (r Record) Names() []string {
	names := make([]string, 0, len(r.Properties))
	for name := range r.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Quantity is one half of an Estimate.
type Quantity struct {
	Value float64
	Set   bool
}

// QuantityOf reads a quantity from a property value.
func QuantityOf(v Value) Quantity {
	n, ok := v.Float()
	return Quantity{Value: n, Set: ok}
}

// Usable reports whether the quantity is set and strictly positive.
func (q Quantity) Usable() bool {
	return q.Set && q.Value > 0
}

// Estimate pairs the first value ever produced with the one downstream processes read.
type Estimate struct {
	Initial Quantity
	Current Quantity
}

// HistoricalRecord is a past record used only as prompt context.
type HistoricalRecord struct {
	ID          string
	Name        string
	Description string
	Duration    float64
	Group       []string
}

// Patch is a single mutation of a record's properties.
type Patch map[string]Value

// Filter is a coarse structural predicate evaluated by the store.
type Filter struct {
	// Property must be a relation with no linked records.
	EmptyRelation string
}
