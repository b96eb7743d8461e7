package api

import (
	"encoding/json"
	"net/http"

	"latchdb/storage/pools"
)

// RespondJSON writes a JSON response using a pooled encoder
func RespondJSON(w http.ResponseWriter, code int, payload interface{}) {
	wrapper := pools.GetJSONEncoder()
	defer pools.PutJSONEncoder(wrapper)

	if err := wrapper.Encoder.Encode(payload); err != nil {
		// Fall back to a plain marshal on encoder failure
		response, _ := json.Marshal(payload)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		w.Write(response)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(wrapper.Buffer.Bytes())
}

// RespondError writes a JSON error response
func RespondError(w http.ResponseWriter, code int, message string) {
	RespondJSON(w, code, ErrorResponse{Error: message})
}

// DecodeJSON decodes JSON from a request body
func DecodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	return decoder.Decode(v)
}
