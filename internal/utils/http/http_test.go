package http

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pawbridge/console-backend/internal/utils/errors"
	"github.com/stretchr/testify/assert"
	rpccode "google.golang.org/genproto/googleapis/rpc/code"
)

type transitionRequest struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required"`
}

type pledgeRequest struct {
	Amount float64 `json:"amount"`
}

func (p *pledgeRequest) Validate() error {
	if p.Amount <= 0 {
		return &errors.ValidationError{Field: "amount", Msg: "amount must be greater than 0"}
	}
	return nil
}

func jsonRequest(body, contentType string) *http.Request {
	req := httptest.NewRequest("POST", "/api/reports/transition", bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func malformed(status rpccode.Code, msg string) error {
	return &errors.MalformedRequestError{Status: status, Msg: msg}
}

func TestDecodeJSONBody(t *testing.T) {
	tables := []struct {
		name        string
		body        string
		contentType string
		want        error
	}{
		{"ok", `{"data": {"id": "r1", "status": "ACCEPTED"}}`, "application/json", nil},
		{"charset", `{"data": {"id": "r1", "status": "ACCEPTED"}}`, "application/json; charset=utf-8", nil},
		{"no content type", `{"data": {"id": "r1", "status": "ACCEPTED"}}`, "", malformed(415, "Content-Type header is not application/json")},
		{"protobuf", `{"data": {"id": "r1", "status": "ACCEPTED"}}`, "application/protobuf", malformed(415, "Content-Type header is not application/json")},
		{"unwrapped", `{"id": "r1", "status": "ACCEPTED"}`, "application/json", malformed(rpccode.Code_INVALID_ARGUMENT, `Request body contains unknown field "id"`)},
		{"no data", `{}`, "application/json", malformed(rpccode.Code_INVALID_ARGUMENT, "Request body must be wrapped in 'data' field")},
		{"empty", ``, "application/json", malformed(rpccode.Code_INVALID_ARGUMENT, "Request body must not be empty")},
		{"truncated", `{"data": {"id": "r1"`, "application/json", malformed(rpccode.Code_INVALID_ARGUMENT, "Request body contains badly-formed JSON")},
		{"two objects", `{"data": {"id": "r1", "status": "x"}}{}`, "application/json", malformed(rpccode.Code_INVALID_ARGUMENT, "Request body must only contain a single JSON object")},
		{"unknown field", `{"data": {"id": "r1", "status": "x", "bogus": 1}}`, "application/json", malformed(rpccode.Code_INVALID_ARGUMENT, `Request body contains unknown field "bogus"`)},
		{"missing field", `{"data": {"id": "r1"}}`, "application/json", malformed(rpccode.Code_INVALID_ARGUMENT, "Validation of the request has failed: Key: 'transitionRequest.Status' Error:Field validation for 'Status' failed on the 'required' tag")},
	}

	for _, table := range tables {
		var request transitionRequest
		err := DecodeJSONBody(httptest.NewRecorder(), jsonRequest(table.body, table.contentType), &request)

		assert.Equal(t, table.want, err, table.name)
		if table.want == nil {
			assert.Equal(t, transitionRequest{ID: "r1", Status: "ACCEPTED"}, request, table.name)
		}
	}
}

func TestDecodeJSONBodyWrongType(t *testing.T) {
	var request transitionRequest
	err := DecodeJSONBody(httptest.NewRecorder(), jsonRequest(`{"data": {"id": 7, "status": "x"}}`, "application/json"), &request)

	assert.Contains(t, err.Error(), `Request body contains an invalid value for the "id" field`)
}

func TestDecodeJSONBodyUsesOwnValidation(t *testing.T) {
	var request pledgeRequest
	err := DecodeJSONBody(httptest.NewRecorder(), jsonRequest(`{"data": {"amount": -5}}`, "application/json"), &request)

	assert.Equal(t, &errors.ValidationError{Field: "amount", Msg: "amount must be greater than 0"}, err)
}

func TestDecodeJSONBodyTooLarge(t *testing.T) {
	var request transitionRequest
	err := DecodeJSONBodyLimit(httptest.NewRecorder(), jsonRequest(`{"data": {"id": "a very long report id indeed", "status": "x"}}`, "application/json"), &request, 16)

	assert.Equal(t, malformed(http.StatusRequestEntityTooLarge, "Request body must not be larger than 16 bytes"), err)
}

func TestDecodeJSONOrReportError(t *testing.T) {
	rr := httptest.NewRecorder()
	var request transitionRequest

	assert.True(t, DecodeJSONOrReportError(rr, jsonRequest(`{"data": {"id": "r1", "status": "ACCEPTED"}}`, "application/json"), &request))
	assert.Equal(t, 0, rr.Body.Len())

	rr = httptest.NewRecorder()
	assert.False(t, DecodeJSONOrReportError(rr, jsonRequest(`{"data": {"id": "r1"}}`, "application/json"), &request))
	assert.Equal(t, `{"error":{"status":3,"message":"Validation of the request has failed: Key: 'transitionRequest.Status' Error:Field validation for 'Status' failed on the 'required' tag"}}`, rr.Body.String())
}

func TestSendResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	SendResponse(rr, httptest.NewRequest("POST", "/api/whoami", nil), map[string]string{"role": "admin"})

	response := rr.Result()
	assert.Equal(t, "200 OK", response.Status)
	assert.Equal(t, "application/json", response.Header.Get("Content-Type"))
	assert.Equal(t, `{"data":{"role":"admin"}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	SendEmptyResponse(rr, httptest.NewRequest("POST", "/api/accounts/edit", nil))
	assert.Equal(t, `{"data":{}}`, rr.Body.String())
}

func TestSendErrorResponse(t *testing.T) {
	tables := []struct {
		err  error
		want string
	}{
		{&errors.UnknownError{Msg: "boom"}, `{"error":{"status":13,"message":"boom"}}`},
		{&errors.MalformedRequestError{Msg: "bad request"}, `{"error":{"status":3,"message":"bad request"}}`},
		{&errors.NotFoundError{Msg: "report not found"}, `{"error":{"status":5,"message":"report not found"}}`},
		{fmt.Errorf("plain failure"), `{"error":{"status":13,"message":"plain failure"}}`},
		{&errors.ValidationError{Field: "goalAmount", Msg: "goalAmount must be greater than 0"}, `{"error":{"status":3,"message":"goalAmount must be greater than 0","field":"goalAmount"}}`},
		{fmt.Errorf("guard: %w", &errors.UnauthenticatedError{Msg: "Sign-in required", Redirect: "index.html"}), `{"error":{"status":16,"message":"guard: Sign-in required","redirect":"index.html"}}`},
	}

	for _, table := range tables {
		rr := httptest.NewRecorder()
		SendErrorResponse(rr, httptest.NewRequest("POST", "/api/reports/get", nil), table.err)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, table.want, rr.Body.String())
	}
}
