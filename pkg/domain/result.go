package domain

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Result is one per-domain record returned by the lookup service. Raw holds
// the record exactly as received; URL is extracted from its "url" field.
type Result struct {
	// URL is the address the service resolved the record for.
	URL string
	// Raw is the complete JSON object.
	Raw jx.Raw
}

// Decode reads a single record from d, keeping a private copy of its bytes.
func (r *Result) Decode(d *jx.Decoder) error {
	if r == nil {
		return errors.New("invalid: unable to decode Result to nil")
	}
	raw, err := d.RawAppend(nil)
	if err != nil {
		return errors.Wrap(err, "read Result")
	}
	if raw.Type() != jx.Object {
		return errors.Errorf("decode Result: unexpected %s", raw.Type())
	}

	r.Raw = raw
	r.URL = ""
	if err := jx.DecodeBytes(raw).ObjBytes(func(d *jx.Decoder, k []byte) error {
		if string(k) != "url" || d.Next() != jx.String {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return errors.Wrap(err, "decode field \"url\"")
		}
		r.URL = v

		return nil
	}); err != nil {
		return errors.Wrap(err, "decode Result")
	}

	return nil
}

// MarshalJSON returns the record as received.
func (r Result) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}

	return r.Raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Result) UnmarshalJSON(data []byte) error {
	return r.Decode(jx.DecodeBytes(data))
}

// DecodeResults decodes a JSON array of records as returned by the lookup
// endpoint.
func DecodeResults(data []byte) ([]Result, error) {
	out := make([]Result, 0)
	if err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var r Result
		if err := r.Decode(d); err != nil {
			return err
		}
		out = append(out, r)

		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode results")
	}

	return out, nil
}
