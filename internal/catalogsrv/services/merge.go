package services

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/settings"
)

// mergeSettings shallow merges the keys of patch into base. Keys of base
// that patch does not name are kept, in their original order.
func mergeSettings(base, patch json.RawMessage) (json.RawMessage, error) {
	out := append([]byte(nil), base...)
	if len(out) == 0 || !gjson.ParseBytes(out).IsObject() {
		out = []byte("{}")
	}
	if !gjson.ParseBytes(patch).IsObject() {
		return nil, ErrValidation.Msg("Invalid settings payload")
	}

	var err error
	gjson.ParseBytes(patch).ForEach(func(key, value gjson.Result) bool {
		if key.String() == "" {
			out = setEmptyKey(out, value.Raw)
			return true
		}
		out, err = sjson.SetRawBytes(out, settings.EscapePath(key.String()), []byte(value.Raw))
		return err == nil
	})
	if err != nil {
		return nil, ErrValidation.MsgErr("Invalid settings payload", err)
	}
	return json.RawMessage(out), nil
}

// setEmptyKey sets the "" key of obj to raw. No sjson path addresses the
// empty key, so the object is rewritten member by member.
func setEmptyKey(obj []byte, raw string) []byte {
	var b bytes.Buffer
	b.WriteByte('{')
	found := false
	gjson.ParseBytes(obj).ForEach(func(key, value gjson.Result) bool {
		if b.Len() > 1 {
			b.WriteByte(',')
		}
		b.WriteString(key.Raw)
		b.WriteByte(':')
		if key.String() == "" {
			found = true
			b.WriteString(raw)
		} else {
			b.WriteString(value.Raw)
		}
		return true
	})
	if !found {
		if b.Len() > 1 {
			b.WriteByte(',')
		}
		b.WriteString(`"":`)
		b.WriteString(raw)
	}
	b.WriteByte('}')
	return b.Bytes()
}
