// Package response writes dispatcher results as HTTP responses. Every
// response, including an empty one, is labelled as JSON.
package response

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/zcapi-go/zcapi/internal/api"
)

// ContentType is the media type of every response
const ContentType = "application/json"

// Render writes a dispatcher response. The body is encoded before anything
// is written so an encoding failure can still become a 500.
func Render(w http.ResponseWriter, resp *api.Response) error {
	if resp.Empty {
		RenderEmpty(w, resp.Status)
		return nil
	}
	return RenderJSON(w, resp.Status, resp.Body)
}

// RenderJSON writes body as JSON with the given status
func RenderJSON(w http.ResponseWriter, status int, body interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// RenderEmpty writes a status with no body
func RenderEmpty(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
}
