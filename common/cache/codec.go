package cache

import (
	"encoding"
	"strconv"
)

// Encode converts a value into the byte form stored by every cache tier.
// It accepts the same value kinds the redis client serialises natively.
func Encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return []byte{}, nil
	case string:
		return []byte(v), nil
	case []byte:
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	case int:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	case bool:
		if v {
			return []byte("1"), nil
		}
		return []byte("0"), nil
	case encoding.BinaryMarshaler:
		return v.MarshalBinary()
	default:
		return nil, ErrInvalidValue
	}
}

// Decode writes stored bytes into dst.
func Decode(data []byte, dst interface{}) error {
	switch v := dst.(type) {
	case *string:
		*v = string(data)
	case *[]byte:
		out := make([]byte, len(data))
		copy(out, data)
		*v = out
	case *int:
		n, err := strconv.Atoi(string(data))
		if err != nil {
			return ErrInvalidValue
		}
		*v = n
	case encoding.BinaryUnmarshaler:
		return v.UnmarshalBinary(data)
	default:
		return ErrInvalidValue
	}
	return nil
}
