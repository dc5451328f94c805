package collector

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/klauspost/compress/gzip"
	"github.com/tidwall/gjson"
)

// Sign returns the base64 HMAC-SHA256 of payload keyed by secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Compress gzips payload.
func Compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("gzip payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip payload: %w", err)
	}
	return buf.Bytes(), nil
}

// buildArray joins JSON documents into one array, skipping any that are
// not valid JSON. Returns the array and how many documents were skipped.
func buildArray(events [][]byte) ([]byte, int) {
	var buf bytes.Buffer
	skipped := 0
	buf.WriteByte('[')
	n := 0
	for _, ev := range events {
		if !gjson.ValidBytes(ev) {
			skipped++
			continue
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.Write(ev)
		n++
	}
	buf.WriteByte(']')
	if n == 0 {
		return nil, skipped
	}
	return buf.Bytes(), skipped
}
