package script

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/tidwall/gjson"
	lua "github.com/yuin/gopher-lua"
)

// Bridge converts values between Go and Lua.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a new Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// ToGoValue converts a Lua value to a Go value. Tables become []any when
// their keys are exactly 1..n and map[string]any otherwise. Integral
// numbers become int64.
func (b *Bridge) ToGoValue(lv lua.LValue) any {
	return b.toGoValue(lv, make(map[*lua.LTable]bool))
}

func (b *Bridge) toGoValue(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		defer delete(visited, v)
		return b.tableToGo(v, visited)
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

func (b *Bridge) tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	count, maxN := 0, 0
	isArray := true
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if kn, ok := k.(lua.LNumber); ok {
			n := int(kn)
			if float64(n) == float64(kn) && n > 0 {
				maxN = max(maxN, n)
				return
			}
		}
		isArray = false
	})

	if isArray && maxN > 0 && count == maxN {
		arr := make([]any, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = b.toGoValue(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = strconv.FormatFloat(float64(kv), 'f', -1, 64)
		default:
			key = k.String()
		}
		m[key] = b.toGoValue(v, visited)
	})
	return m
}

// ToLuaValue converts a Go value to a Lua value. Scalars, slices and
// string-keyed maps convert directly; anything else goes through its JSON
// encoding.
func (b *Bridge) ToLuaValue(v any) lua.LValue {
	if v == nil {
		return lua.LNil
	}

	switch val := v.(type) {
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := b.L.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, b.ToLuaValue(e))
		}
		return t
	case []string:
		t := b.L.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, lua.LString(e))
		}
		return t
	case map[string]any:
		t := b.L.NewTable()
		for k, e := range val {
			t.RawSetString(k, b.ToLuaValue(e))
		}
		return t
	case json.RawMessage:
		return b.jsonToLua(val)
	case []byte:
		if gjson.ValidBytes(val) {
			return b.jsonToLua(val)
		}
		return lua.LString(val)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			ud := b.L.NewUserData()
			ud.Value = v
			return ud
		}
		return b.jsonToLua(data)
	}
}

// jsonToLua converts a JSON document to a Lua value.
func (b *Bridge) jsonToLua(data []byte) lua.LValue {
	if !gjson.ValidBytes(data) {
		return lua.LNil
	}
	return b.ToLuaValue(gjson.ParseBytes(data).Value())
}

// Decode converts v, a value produced by a script, back into the Go type of
// original. []byte and json.RawMessage originals receive v's JSON encoding;
// structs and pointers to structs are decoded from it. Maps and other
// untyped originals receive v unchanged.
func Decode(original, v any) (any, error) {
	switch original.(type) {
	case nil, map[string]any, []any:
		return v, nil
	case json.RawMessage:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode script result: %w", err)
		}
		return json.RawMessage(data), nil
	case []byte:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode script result: %w", err)
		}
		return data, nil
	}

	rt := reflect.TypeOf(original)
	target := rt
	if rt.Kind() == reflect.Pointer {
		target = rt.Elem()
	}
	if target.Kind() != reflect.Struct {
		return v, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode script result: %w", err)
	}
	ptr := reflect.New(target)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("decode script result into %s: %w", target, err)
	}
	if rt.Kind() == reflect.Pointer {
		return ptr.Interface(), nil
	}
	return ptr.Elem().Interface(), nil
}
