package decode

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sanchey92/checkout-service/internal/domain/model"
)

// JSON decodes a single JSON object from the request body into dest.
// Unknown fields are rejected. Failures are reported as validation errors.
func JSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return model.Validation("empty request body")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return model.Validation("empty request body")
		}
		return model.Validation("invalid JSON: %v", err)
	}

	if dec.More() {
		return model.Validation("request body must contain a single JSON object")
	}

	return nil
}
