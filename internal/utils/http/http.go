package http

import (
	"encoding/json"
	ers "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/golang/gddo/httputil/header"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/utils"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	rpccode "google.golang.org/genproto/googleapis/rpc/code"
)

// DefaultMaxBodyBytes limits ordinary request bodies.
const DefaultMaxBodyBytes = 1048576

// validating requests report their own field-scoped validation errors.
type validating interface {
	Validate() error
}

type requestEnvelope struct {
	Data *json.RawMessage `json:"data"`
}

type responseEnvelope struct {
	Data interface{} `json:"data"`
}

type errorBody struct {
	Status   rpccode.Code `json:"status"`
	Message  string       `json:"message"`
	Field    string       `json:"field,omitempty"`
	Redirect string       `json:"redirect,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// DecodeJSONBody decodes `{"data": {...}}` request into dst and validates it.
// Based on https://www.alexedwards.net/blog/how-to-properly-parse-a-json-request-body
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return DecodeJSONBodyLimit(w, r, dst, DefaultMaxBodyBytes)
}

// DecodeJSONBodyLimit is DecodeJSONBody with custom body size limit.
func DecodeJSONBodyLimit(w http.ResponseWriter, r *http.Request, dst interface{}, maxBytes int64) error {
	value, _ := header.ParseValueAndParams(r.Header, "Content-Type")
	if value != "application/json" {
		msg := "Content-Type header is not application/json"
		return &errors.MalformedRequestError{Status: http.StatusUnsupportedMediaType, Msg: msg}
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var envelope requestEnvelope
	if err := translateDecodeError(dec.Decode(&envelope), maxBytes); err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		msg := "Request body must only contain a single JSON object"
		return &errors.MalformedRequestError{Status: rpccode.Code_INVALID_ARGUMENT, Msg: msg}
	}

	if envelope.Data == nil {
		msg := "Request body must be wrapped in 'data' field"
		return &errors.MalformedRequestError{Status: rpccode.Code_INVALID_ARGUMENT, Msg: msg}
	}

	inner := json.NewDecoder(strings.NewReader(string(*envelope.Data)))
	inner.DisallowUnknownFields()
	if err := translateDecodeError(inner.Decode(dst), maxBytes); err != nil {
		return err
	}

	if v, ok := dst.(validating); ok {
		return v.Validate()
	}

	if err := utils.Validate.Struct(dst); err != nil {
		msg := fmt.Sprintf("Validation of the request has failed: %v", err.Error())
		return &errors.MalformedRequestError{Status: rpccode.Code_INVALID_ARGUMENT, Msg: msg}
	}

	return nil
}

func translateDecodeError(err error, maxBytes int64) error {
	if err == nil {
		return nil
	}

	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError

	switch {
	case ers.As(err, &syntaxError):
		msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
		return &errors.MalformedRequestError{Status: rpccode.Code_INVALID_ARGUMENT, Msg: msg}

	case ers.Is(err, io.ErrUnexpectedEOF):
		msg := "Request body contains badly-formed JSON"
		return &errors.MalformedRequestError{Status: rpccode.Code_INVALID_ARGUMENT, Msg: msg}

	case ers.As(err, &unmarshalTypeError):
		msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
		return &errors.MalformedRequestError{Status: rpccode.Code_INVALID_ARGUMENT, Msg: msg}

	case strings.HasPrefix(err.Error(), "json: unknown field "):
		fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
		msg := fmt.Sprintf("Request body contains unknown field %s", fieldName)
		return &errors.MalformedRequestError{Status: rpccode.Code_INVALID_ARGUMENT, Msg: msg}

	case ers.Is(err, io.EOF):
		msg := "Request body must not be empty"
		return &errors.MalformedRequestError{Status: rpccode.Code_INVALID_ARGUMENT, Msg: msg}

	case err.Error() == "http: request body too large":
		msg := fmt.Sprintf("Request body must not be larger than %d bytes", maxBytes)
		return &errors.MalformedRequestError{Status: http.StatusRequestEntityTooLarge, Msg: msg}

	default:
		return err
	}
}

// DecodeJSONOrReportError decodes the request and sends an error response when it fails. Returns true on success.
func DecodeJSONOrReportError(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	return DecodeJSONLimitOrReportError(w, r, dst, DefaultMaxBodyBytes)
}

// DecodeJSONLimitOrReportError is DecodeJSONOrReportError with custom body size limit.
func DecodeJSONLimitOrReportError(w http.ResponseWriter, r *http.Request, dst interface{}, maxBytes int64) bool {
	if err := DecodeJSONBodyLimit(w, r, dst, maxBytes); err != nil {
		logging.FromContext(r.Context()).Debugf("Could not decode request: %v", err)
		SendErrorResponse(w, r, err)
		return false
	}
	return true
}

// SendResponse sends `{"data": ...}` response.
func SendResponse(w http.ResponseWriter, r *http.Request, body interface{}) {
	writeJSON(w, r, responseEnvelope{Data: body})
}

// SendEmptyResponse sends `{"data": {}}` response.
func SendEmptyResponse(w http.ResponseWriter, r *http.Request) {
	SendResponse(w, r, struct{}{})
}

// SendErrorResponse sends `{"error": {...}}` response. Errors without code are reported as INTERNAL.
func SendErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Status: rpccode.Code_INTERNAL, Message: err.Error()}

	var coded errors.ConsoleError
	if ers.As(err, &coded) {
		body.Status = coded.Code()
	}

	var validationError *errors.ValidationError
	if ers.As(err, &validationError) {
		body.Field = validationError.Field
	}

	var unauthenticatedError *errors.UnauthenticatedError
	if ers.As(err, &unauthenticatedError) {
		body.Redirect = unauthenticatedError.Redirect
	}

	writeJSON(w, r, errorEnvelope{Error: body})
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		logging.FromContext(r.Context()).Errorf("Could not encode response: %v", err)
		http.Error(w, "Could not encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
