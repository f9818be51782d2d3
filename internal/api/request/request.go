package request

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// maxBodySize bounds request bodies; summarizer submissions are text, not
// uploads.
const maxBodySize = 1 << 20 // 1 MiB

// ErrEmptyBody is returned when a JSON body was expected but absent.
var ErrEmptyBody = errors.New("request body is empty")

// DecodeJSON decodes a JSON request body into dst with a size cap.
func DecodeJSON(r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodySize)
	defer body.Close()

	err := json.NewDecoder(body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return ErrEmptyBody
	}
	return err
}

// GetQueryString returns a string query parameter or the default value
func GetQueryString(r *http.Request, key string, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}
