package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const version = "2.0"

// JSON-RPC error codes used in Response.Error["code"]
const (
	CodeParseError     = "-32700"
	CodeInvalidRequest = "-32600"
	CodeMethodNotFound = "-32601"
)

var (
	// ErrParse is returned by Decode for bodies that are not JSON requests.
	ErrParse = errors.New("JSON-RPC parse error")

	// ErrInvalidRequest is returned by Decode for requests without a method.
	ErrInvalidRequest = errors.New("invalid JSON-RPC request")
)

// Request - JSON-RPC request packet
type Request struct {
	Protocol string            `json:"jsonrpc"`
	ID       string            `json:"id,omitempty"`
	Method   string            `json:"method"`
	Params   map[string]string `json:"params"`
}

// NewRequest builds a request with a fresh random id.
func NewRequest(method string, params map[string]string) *Request {
	return &Request{
		Protocol: version,
		ID:       uuid.New().String(),
		Method:   method,
		Params:   params,
	}
}

// Decode parses body and rejects requests without a method.
func Decode(body string) (*Request, error) {
	r := &Request{}
	if err := r.FromJSON(body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if r.Method == "" {
		return nil, fmt.Errorf("%w: missing method", ErrInvalidRequest)
	}
	return r, nil
}

// JSON - convert struct to json
func (r *Request) JSON() (string, error) {
	r.Protocol = version
	bin, err := json.Marshal(r)
	return string(bin), err
}

// FromJSON - convert json to struct
func (r *Request) FromJSON(jsonString string) error {
	return json.Unmarshal([]byte(jsonString), r)
}

// String representation
func (r *Request) String() string {
	return fmt.Sprintf("id=%s method=%s params=%s", r.ID, r.Method, r.Params)
}

// Response - JSON-RPC response packet
type Response struct {
	Protocol string            `json:"jsonrpc"`
	ID       string            `json:"id"`
	Result   map[string]string `json:"result,omitempty"`
	Error    map[string]string `json:"error,omitempty"`
}

// NewError builds an error response. Use ErrorCode to pick code for a Decode error.
func NewError(id, code, message string) *Response {
	return &Response{
		Protocol: version,
		ID:       id,
		Error:    map[string]string{"code": code, "message": message},
	}
}

// ErrorCode maps a Decode error onto its JSON-RPC code.
func ErrorCode(err error) string {
	if errors.Is(err, ErrParse) {
		return CodeParseError
	}
	return CodeInvalidRequest
}

// JSON - convert struct to json
func (r *Response) JSON() (string, error) {
	r.Protocol = version
	bin, err := json.Marshal(r)
	return string(bin), err
}

// FromJSON - convert json to struct
func (r *Response) FromJSON(jsonString string) error {
	return json.Unmarshal([]byte(jsonString), r)
}

// String representation
func (r *Response) String() string {
	return fmt.Sprintf("id=%s result=%s error=%s", r.ID, r.Result, r.Error)
}
