package events

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/evbus/internal/event"
)

var decoders = map[event.Name]func([]byte) (any, error){
	UserLogin.Name():      decodeAs[Login],
	UserLogout.Name():     decodeAs[Logout],
	DataUpdate.Name():     decodeAs[Update],
	ConfigReloaded.Name(): decodeAs[Reloaded],
}

// Decode unmarshals data into the payload type of the schema event name.
// For names outside the schema it returns data as a json.RawMessage.
func Decode(name event.Name, data []byte) (any, error) {
	decode, ok := decoders[name]
	if !ok {
		return json.RawMessage(data), nil
	}
	return decode(data)
}

func decodeAs[T any](data []byte) (any, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}
