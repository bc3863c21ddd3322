package api

import (
	"bytes"
	"context"
	"encoding/json"
)

type resultEnvelope struct {
	Result json.RawMessage `json:"result"`
}

type resultsEnvelope struct {
	Results json.RawMessage `json:"results"`
}

type errorEnvelope struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// decodeResult unwraps a {result} envelope into T.
func decodeResult[T any](path string, body []byte) (T, error) {
	var zero T
	var env resultEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return zero, &DecodeError{Path: path, Field: "result", Err: err}
	}
	if len(env.Result) == 0 {
		return zero, &DecodeError{Path: path, Field: "result"}
	}

	var out T
	if err := json.Unmarshal(env.Result, &out); err != nil {
		return zero, &DecodeError{Path: path, Field: "result", Err: err}
	}
	return out, nil
}

// decodeResults unwraps a {results} envelope into a slice of T. A null list
// decodes as empty.
func decodeResults[T any](path string, body []byte) ([]T, error) {
	var env resultsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &DecodeError{Path: path, Field: "results", Err: err}
	}
	if len(env.Results) == 0 {
		return nil, &DecodeError{Path: path, Field: "results"}
	}

	out := []T{}
	if bytes.Equal(env.Results, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(env.Results, &out); err != nil {
		return nil, &DecodeError{Path: path, Field: "results", Err: err}
	}
	return out, nil
}

func decodeErrorEnvelope(body []byte) (message, detail string) {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", ""
	}
	if len(env.Error) > 0 && !bytes.Equal(env.Error, []byte("null")) {
		var s string
		if err := json.Unmarshal(env.Error, &s); err == nil {
			detail = s
		} else {
			detail = string(env.Error)
		}
	}
	return env.Message, detail
}

func getResult[T any](ctx context.Context, c *Client, route, path string) (T, error) {
	body, err := c.do(ctx, "GET", route, path, nil)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeResult[T](path, body)
}

func getResults[T any](ctx context.Context, c *Client, route, path string) ([]T, error) {
	body, err := c.do(ctx, "GET", route, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeResults[T](path, body)
}
