package store

import (
	"encoding/base64"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// NilMarker is written instead of an empty or null serialization so that no
// key ever holds an empty string.
const NilMarker = "(nil)"

// compressedPrefix tags values that were zstd-compressed and base64url-encoded.
const compressedPrefix = "~z:"

// escapedPrefix tags caller strings that would otherwise read back as
// NilMarker or as a tagged value. JSON documents never start with '~' or '('.
const escapedPrefix = "~e:"

var enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
var dec, _ = zstd.NewReader(nil)

type codec struct {
	compressAbove int
}

func newCodec(compressAbove int) codec {
	return codec{compressAbove: compressAbove}
}

// encode turns v into the stored form. Strings are stored as they are,
// anything else as JSON. Only an empty string or a null serialization
// becomes NilMarker.
func (c codec) encode(v any) (string, error) {
	var s string
	switch t := v.(type) {
	case nil:
		return NilMarker, nil
	case string:
		if t == "" {
			return NilMarker, nil
		}
		s = escape(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode %T: %w", v, err)
		}
		if len(b) == 0 || string(b) == "null" {
			return NilMarker, nil
		}
		s = string(b)
	}
	if c.compressAbove > 0 && len(s) >= c.compressAbove {
		b := enc.EncodeAll([]byte(s), make([]byte, 0, len(s)/2))
		return compressedPrefix + base64.RawURLEncoding.EncodeToString(b), nil
	}
	return s, nil
}

func escape(s string) string {
	if s == NilMarker || strings.HasPrefix(s, compressedPrefix) || strings.HasPrefix(s, escapedPrefix) {
		return escapedPrefix + s
	}
	return s
}

// raw undoes compression. A tagged value that does not decompress is returned as is.
func (c codec) raw(stored string) string {
	if !strings.HasPrefix(stored, compressedPrefix) {
		return stored
	}
	b, err := base64.RawURLEncoding.DecodeString(stored[len(compressedPrefix):])
	if err != nil {
		return stored
	}
	out, err := dec.DecodeAll(b, nil)
	if err != nil {
		return stored
	}
	return string(out)
}

// decode converts a stored value into T. NilMarker and undecodable values
// yield the zero value.
func decode[T any](c codec, stored string) (T, error) {
	var v T
	s := c.raw(stored)
	if s == NilMarker {
		return v, nil
	}
	s = strings.TrimPrefix(s, escapedPrefix)
	if p, ok := any(&v).(*string); ok {
		*p = s
		return v, nil
	}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
