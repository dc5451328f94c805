package event

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON indicates Parse received malformed input.
var ErrInvalidJSON = errors.New("invalid json")

// Parse decodes JSON into a Value, keeping object member order.
func Parse(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Value{}, ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Null()
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Number(r.Num)
	case gjson.String:
		return String(r.Str)
	}

	if r.IsArray() {
		var items []Value
		r.ForEach(func(_, item gjson.Result) bool {
			items = append(items, fromResult(item))
			return true
		})
		return Value{kind: KindArray, items: items}
	}

	b := NewBuilder()
	r.ForEach(func(key, val gjson.Result) bool {
		b.Set(key.Str, fromResult(val))
		return true
	})
	return b.Build()
}
