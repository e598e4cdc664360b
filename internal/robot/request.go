package robot

import (
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// ErrInvalidRequest is returned for move requests that cannot be accepted
var ErrInvalidRequest = errors.New("invalid move request")

// numericFields are the fields every move request must carry
var numericFields = []string{"x", "y", "floor", "yaw"}

// ParseOption configures ParseMoveRequest
type ParseOption func(*parseConfig)

type parseConfig struct {
	strict bool
}

// WithStrictValidation controls whether missing or non-numeric fields are rejected.
// When disabled, such fields default to zero.
func WithStrictValidation(strict bool) ParseOption {
	return func(cfg *parseConfig) {
		cfg.strict = strict
	}
}

// ParseMoveRequest decodes a JSON move request body.
// Strict validation is on by default.
func ParseMoveRequest(body []byte, opts ...ParseOption) (MoveRequest, error) {
	cfg := &parseConfig{strict: true}
	for _, opt := range opts {
		opt(cfg)
	}

	if !gjson.ValidBytes(body) {
		return MoveRequest{}, fmt.Errorf("%w: body is not valid JSON", ErrInvalidRequest)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return MoveRequest{}, fmt.Errorf("%w: body must be a JSON object", ErrInvalidRequest)
	}

	values := make(map[string]float64, len(numericFields))
	for _, name := range numericFields {
		field := root.Get(name)
		if cfg.strict {
			if !field.Exists() || field.Type == gjson.Null {
				return MoveRequest{}, fmt.Errorf("%w: %s is required", ErrInvalidRequest, name)
			}
			if field.Type != gjson.Number {
				return MoveRequest{}, fmt.Errorf("%w: %s must be a number", ErrInvalidRequest, name)
			}
		}
		// gjson yields 0 for missing or unparseable values and ±Inf on overflow
		value := field.Float()
		if math.IsInf(value, 0) || math.IsNaN(value) {
			return MoveRequest{}, fmt.Errorf("%w: %s must be a finite number", ErrInvalidRequest, name)
		}
		values[name] = value
	}

	floor := values["floor"]
	if cfg.strict {
		if floor != math.Trunc(floor) || floor < 1 || floor > math.MaxInt32 {
			return MoveRequest{}, fmt.Errorf("%w: floor must be an integer >= 1", ErrInvalidRequest)
		}
	}

	room := root.Get("room")
	if cfg.strict && room.Exists() && room.Type != gjson.String && room.Type != gjson.Null {
		return MoveRequest{}, fmt.Errorf("%w: room must be a string", ErrInvalidRequest)
	}

	return MoveRequest{
		X:     values["x"],
		Y:     values["y"],
		Floor: int(floor),
		Yaw:   values["yaw"],
		Room:  roomString(room),
	}, nil
}

func roomString(room gjson.Result) string {
	if room.Type != gjson.String {
		return ""
	}
	return room.Str
}
