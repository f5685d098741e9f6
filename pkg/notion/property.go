package notion

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/harrisonrobin/estima/pkg/model"
)

type richText struct {
	PlainText string `json:"plain_text"`
}

type option struct {
	Name string `json:"name"`
}

type dateValue struct {
	Start string `json:"start"`
}

type ref struct {
	ID string `json:"id"`
}

type formulaValue struct {
	Type    string     `json:"type"`
	String  *string    `json:"string"`
	Number  *float64   `json:"number"`
	Boolean *bool      `json:"boolean"`
	Date    *dateValue `json:"date"`
}

type rollupValue struct {
	Type   string            `json:"type"`
	Number *float64          `json:"number"`
	Date   *dateValue        `json:"date"`
	Array  []json.RawMessage `json:"array"`
}

type property struct {
	Type        string        `json:"type"`
	Title       []richText    `json:"title"`
	RichText    []richText    `json:"rich_text"`
	Number      *float64      `json:"number"`
	Select      *option       `json:"select"`
	Status      *option       `json:"status"`
	MultiSelect []option      `json:"multi_select"`
	Date        *dateValue    `json:"date"`
	Relation    []ref         `json:"relation"`
	Formula     *formulaValue `json:"formula"`
	Rollup      *rollupValue  `json:"rollup"`
}

// decoderFor returns the decoder for one of the known property kinds.
func decoderFor(kind string) (func(property) (model.Value, error), bool) {
	switch kind {
	case "title":
		return func(p property) (model.Value, error) { return model.Text(model.KindText, plain(p.Title)), nil }, true
	case "rich_text":
		return func(p property) (model.Value, error) { return model.Text(model.KindText, plain(p.RichText)), nil }, true
	case "number":
		return decodeNumber, true
	case "select":
		return func(p property) (model.Value, error) { return decodeOption(p.Select), nil }, true
	case "status":
		return func(p property) (model.Value, error) { return decodeOption(p.Status), nil }, true
	case "multi_select":
		return decodeMultiSelect, true
	case "date":
		return decodeDate, true
	case "relation":
		return decodeRelation, true
	case "formula":
		return decodeFormula, true
	case "rollup":
		return decodeRollup, true
	}
	return nil, false
}

// DecodeProperty decodes one raw property object. Kinds outside the known
// set yield an absent value; malformed payloads yield an error.
func DecodeProperty(raw json.RawMessage) (model.Value, error) {
	var p property
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Value{}, eris.Wrap(err, "decode property")
	}
	decode, ok := decoderFor(p.Type)
	if !ok {
		return model.Absent(model.KindUnknown), nil
	}
	return decode(p)
}

func plain(parts []richText) string {
	var b strings.Builder
	for _, t := range parts {
		b.WriteString(t.PlainText)
	}
	return b.String()
}

func decodeNumber(p property) (model.Value, error) {
	if p.Number == nil {
		return model.Absent(model.KindNumber), nil
	}
	return model.Number(model.KindNumber, *p.Number), nil
}

func decodeOption(o *option) model.Value {
	if o == nil {
		return model.Absent(model.KindSelect)
	}
	return model.Text(model.KindSelect, o.Name)
}

func decodeMultiSelect(p property) (model.Value, error) {
	names := make([]string, 0, len(p.MultiSelect))
	for _, o := range p.MultiSelect {
		names = append(names, o.Name)
	}
	return model.List(model.KindMultiSelect, names), nil
}

func decodeDate(p property) (model.Value, error) {
	if p.Date == nil {
		return model.Absent(model.KindDate), nil
	}
	return model.Text(model.KindDate, p.Date.Start), nil
}

func decodeRelation(p property) (model.Value, error) {
	ids := make([]string, 0, len(p.Relation))
	for _, r := range p.Relation {
		ids = append(ids, r.ID)
	}
	return model.List(model.KindRelation, ids), nil
}

func decodeFormula(p property) (model.Value, error) {
	f := p.Formula
	if f == nil {
		return model.Absent(model.KindFormula), nil
	}
	switch f.Type {
	case "string":
		if f.String == nil {
			return model.Absent(model.KindFormula), nil
		}
		return model.Text(model.KindFormula, *f.String), nil
	case "number":
		if f.Number == nil {
			return model.Absent(model.KindFormula), nil
		}
		return model.Number(model.KindFormula, *f.Number), nil
	case "boolean":
		if f.Boolean == nil {
			return model.Absent(model.KindFormula), nil
		}
		return model.Text(model.KindFormula, strconv.FormatBool(*f.Boolean)), nil
	case "date":
		if f.Date == nil {
			return model.Absent(model.KindFormula), nil
		}
		return model.Text(model.KindFormula, f.Date.Start), nil
	}
	return model.Absent(model.KindFormula), nil
}

func decodeRollup(p property) (model.Value, error) {
	r := p.Rollup
	if r == nil {
		return model.Absent(model.KindRollup), nil
	}
	switch r.Type {
	case "number":
		if r.Number == nil {
			return model.Absent(model.KindRollup), nil
		}
		return model.Number(model.KindRollup, *r.Number), nil
	case "date":
		if r.Date == nil {
			return model.Absent(model.KindRollup), nil
		}
		return model.Text(model.KindRollup, r.Date.Start), nil
	case "array":
		items := make([]string, 0, len(r.Array))
		for _, raw := range r.Array {
			v, err := DecodeProperty(raw)
			if err != nil {
				return model.Value{}, err
			}
			if s := v.String(); s != "" {
				items = append(items, s)
			}
		}
		return model.List(model.KindRollup, items), nil
	}
	return model.Absent(model.KindRollup), nil
}

// encodeValue renders a value as a page-update property payload.
func encodeValue(v model.Value) (any, error) {
	switch v.Kind {
	case model.KindNumber:
		if n, ok := v.Float(); ok {
			return map[string]any{"number": n}, nil
		}
		return map[string]any{"number": nil}, nil
	case model.KindText:
		if !v.Present() || v.Text == "" {
			return map[string]any{"rich_text": []any{}}, nil
		}
		return map[string]any{"rich_text": []any{
			map[string]any{"text": map[string]any{"content": v.Text}},
		}}, nil
	case model.KindSelect:
		if !v.Present() {
			return map[string]any{"select": nil}, nil
		}
		return map[string]any{"select": map[string]any{"name": v.Text}}, nil
	}
	return nil, eris.Errorf("unsupported property kind %s", v.Kind)
}
