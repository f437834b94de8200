package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400 or 404, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503.
//
// NEVER change any of the current error codes, only append new errors
// after the current last 4XXX or 5XXX.
var (
	ErrMalformedBody       = Error{Code: 40001, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedParam      = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed URL parameter")}
	ErrBatchRejected       = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("transaction batch rejected")}
	ErrShieldRejected      = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("shield request rejected")}
	ErrKeyRejected         = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("verifying key rejected")}
	ErrUnauthorizedCaller  = Error{Code: 40006, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("caller not authorized")}
	ErrResourceNotFound    = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)
