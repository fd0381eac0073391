package normalize

import (
	"encoding/base64"
	"math"
	"strings"
)

const DataURIPrefix = "data:image/png;base64,"

// EncodeDataURI wraps PNG bytes as a base64 data URI.
func EncodeDataURI(pngBytes []byte) string {
	return DataURIPrefix + base64.StdEncoding.EncodeToString(pngBytes)
}

// SizeKB converts an encoded byte length to kilobytes rounded to one
// decimal place.
func SizeKB(byteLen int) float64 {
	return math.Round(float64(byteLen)/1024*10) / 10
}

// PayloadSizeKB reports the decoded size of a data URI without decoding it.
// The byte length is derived from the base64 payload length (ceil(n*3/4));
// measuring the text directly would overcount by roughly a third.
func PayloadSizeKB(dataURI string) float64 {
	payload := dataURI
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	decodedLen := (len(payload)*3 + 3) / 4
	return SizeKB(decodedLen)
}
