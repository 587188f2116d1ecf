package request

import (
	"encoding/json"
	"errors"
	"net/http"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads a single JSON value from the request body into dst, capping
// the body size.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}

	// A second value means the body wasn't a single JSON object.
	if dec.More() {
		return errors.New("body must contain a single JSON value")
	}
	return nil
}
