package crypto

import (
	"bytes"
	"encoding/json"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Canonical encodes a string map as canonical JSON: NFC-normalized keys and
// values, keys sorted bytewise, no insignificant whitespace. Two maps with the
// same contents always produce identical bytes, which makes the output safe to
// hash for content-derived identifiers.
func Canonical(m map[string]string) []byte {
	keys := make([]string, 0, len(m))
	normalized := make(map[string]string, len(m))
	for k, v := range m {
		nk := norm.NFC.String(k)
		normalized[nk] = norm.NFC.String(v)
		keys = append(keys, nk)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(&buf, k)
		buf.WriteByte(':')
		writeJSONString(&buf, normalized[k])
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func writeJSONString(buf *bytes.Buffer, s string) {
	// json.Marshal of a string cannot fail.
	encoded, _ := json.Marshal(s)
	buf.Write(encoded)
}
