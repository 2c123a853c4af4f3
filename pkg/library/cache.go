package library

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/matzehuels/humbleplugin/pkg/errors"
)

// Orders maps gamekey to raw order JSON and remembers insertion order, so
// resolves assemble games deterministically and the cache round-trips
// byte-for-byte in the same order.
type Orders struct {
	keys []string
	m    map[string]json.RawMessage
}

// Len returns the number of cached orders.
func (o *Orders) Len() int { return len(o.keys) }

// Keys returns gamekeys in insertion order.
func (o *Orders) Keys() []string { return append([]string(nil), o.keys...) }

// Get returns the raw order for gamekey.
func (o *Orders) Get(gamekey string) (json.RawMessage, bool) {
	raw, ok := o.m[gamekey]
	return raw, ok
}

// Set stores raw under gamekey, keeping the original position of an
// existing entry.
func (o *Orders) Set(gamekey string, raw json.RawMessage) {
	if o.m == nil {
		o.m = make(map[string]json.RawMessage)
	}
	if _, ok := o.m[gamekey]; !ok {
		o.keys = append(o.keys, gamekey)
	}
	o.m[gamekey] = raw
}

func (o *Orders) clone() Orders {
	c := Orders{keys: append([]string(nil), o.keys...), m: make(map[string]json.RawMessage, len(o.m))}
	for k, v := range o.m {
		c.m[k] = v
	}
	return c
}

// MarshalJSON writes the orders as an object in insertion order.
func (o Orders) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(k)
		buf.Write(key)
		buf.WriteByte(':')
		var compact bytes.Buffer
		if err := json.Compact(&compact, o.m[k]); err != nil {
			return nil, err
		}
		buf.Write(compact.Bytes())
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping key order.
func (o *Orders) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = Orders{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New(errors.ErrCodeInvalidInput, "orders cache is not an object")
	}
	*o = Orders{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		o.Set(key, raw)
	}
	_, err = dec.Token()
	return err
}

// Cache is the persisted library state. The host stores it as an opaque
// blob between sessions; timestamps are Unix seconds, zero meaning never.
type Cache struct {
	Orders          Orders            `json:"orders"`
	NextFetchOrders int64             `json:"next_fetch_orders"`
	Troves          []json.RawMessage `json:"troves"`
	NextFetchTroves int64             `json:"next_fetch_troves"`
}

// Clone returns a copy that can be mutated independently.
func (c *Cache) Clone() *Cache {
	if c == nil {
		return &Cache{}
	}
	return &Cache{
		Orders:          c.Orders.clone(),
		NextFetchOrders: c.NextFetchOrders,
		Troves:          append([]json.RawMessage(nil), c.Troves...),
		NextFetchTroves: c.NextFetchTroves,
	}
}

func due(next int64, now time.Time) bool { return now.Unix() >= next }

// Marshal serializes the cache for the host.
func (c *Cache) Marshal() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode library cache")
	}
	return data, nil
}

// UnmarshalCache restores a cache from its serialized form. Empty input
// yields an empty cache.
func UnmarshalCache(data []byte) (*Cache, error) {
	c := &Cache{}
	if len(bytes.TrimSpace(data)) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return &Cache{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode library cache")
	}
	return c, nil
}
