package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-cafe-pos/internal/logging"
	"github.com/ariefcatur/go-cafe-pos/internal/orders"
	"github.com/go-chi/chi/v5"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(k orders.Kind) int {
	switch k {
	case orders.KindValidation, orders.KindMissingSplitAmounts, orders.KindSplitAmountMismatch,
		orders.KindInsufficientStock, orders.KindNoRecipeDefined, orders.KindNoVariantAvailable:
		return http.StatusBadRequest
	case orders.KindNotFound:
		return http.StatusNotFound
	case orders.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError maps a classified error to its HTTP status. Unexpected errors
// are logged and their text is not sent to the client.
func writeError(w http.ResponseWriter, service, step string, err error) {
	kind := orders.KindOf(err)
	code := statusOf(kind)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logging.Error(service, step, err)
		msg = "internal error"
	}
	writeJSON(w, code, errorBody{Error: string(kind), Message: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: string(orders.KindValidation), Message: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			badRequest(w, "invalid json")
			return false
		}
		badRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "invalid id")
		return 0, false
	}
	return id, true
}
