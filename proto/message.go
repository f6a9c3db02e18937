package proto

import (
	"encoding/json"
	"fmt"
	"io"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Command is one client-issued request. Params is handler specific and may be empty.
type Command struct {
	Name   string         `json:"command"`          // selects a handler, e.g. "create_object"
	Params map[string]any `json:"params,omitempty"` // handler inputs
}

// Response is the single reply to a Command on the same connection.
type Response struct {
	Status  string         `json:"status"`            // "success" or "error"
	Result  map[string]any `json:"result,omitempty"`  // set on success, always encoded
	Message string         `json:"message,omitempty"` // set on error
}

func NewCommand(name string, params map[string]any) Command {
	if params == nil {
		params = map[string]any{}
	}
	return Command{Name: name, Params: params}
}

func Success(result map[string]any) Response {
	if result == nil {
		result = map[string]any{}
	}
	return Response{Status: StatusSuccess, Result: result}
}

func Errorf(format string, args ...any) Response {
	return Response{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// MarshalJSON always writes "result" on a success, even when it is empty.
func (r Response) MarshalJSON() ([]byte, error) {
	type wire Response
	if r.Status != StatusSuccess {
		return json.Marshal(wire(r))
	}
	result := r.Result
	if result == nil {
		result = map[string]any{}
	}
	return json.Marshal(struct {
		Status  string         `json:"status"`
		Result  map[string]any `json:"result"`
		Message string         `json:"message,omitempty"`
	}{r.Status, result, r.Message})
}

func (r Response) IsError() bool {
	return r.Status == StatusError
}

// DecodeCommand unmarshals one framed value into a Command.
func DecodeCommand(raw []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Command{}, err
	}
	if cmd.Params == nil {
		cmd.Params = map[string]any{}
	}
	return cmd, nil
}

// DecodeResponse unmarshals one framed value into a Response.
func DecodeResponse(raw []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// WriteMessage marshals v and writes it followed by a newline in a single Write,
// so a message is never interleaved with another on the same connection.
func WriteMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Failure wraps err as an error Response.
func Failure(err error) Response {
	return Response{Status: StatusError, Message: err.Error()}
}
