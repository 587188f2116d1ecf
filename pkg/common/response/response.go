package response

import (
	"encoding/json"
	"net/http"
)

// JsonResponse is the envelope every HTTP endpoint replies with. Data is
// omitted on errors so clients never parse half-built payloads.
type JsonResponse struct {
	Error   bool   `json:"error"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

// JSON writes the standard envelope. Marshal failures surface to the caller
// before any bytes hit the wire.
func JSON(w http.ResponseWriter, status int, data any, isErr bool, msg string) error {
	envelope := JsonResponse{Error: isErr, Message: msg}
	if !isErr {
		envelope.Data = data
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}
