package exif

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

// ErrBadDataURL is returned for strings that are not base64 data URLs.
var ErrBadDataURL = errors.New("exif: malformed data url")

// DecodeDataURL decodes a "data:<mime>;base64,<payload>" string.
func DecodeDataURL(s string) (data []byte, mime string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return nil, "", ErrBadDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrBadDataURL
	}
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return nil, "", ErrBadDataURL
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", ErrBadDataURL
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

// EncodeDataURL embeds data into a base64 data URL. An empty mime is sniffed.
func EncodeDataURL(data []byte, mime string) string {
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
