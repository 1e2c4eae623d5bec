package jsonrpc

import "encoding/json"

// Parse decodes raw bytes into an AnyMessage, producing a ready-to-send
// error response when the bytes are unusable: -32700 when they are not JSON
// at all, -32600 when they are JSON but not a valid JSON-RPC message. The
// error response carries a null id per the JSON-RPC convention for
// undecodable requests.
func Parse(raw []byte) (*AnyMessage, *Response) {
	if !json.Valid(raw) {
		return nil, NewErrorResponse(nil, ErrorCodeParseError, "Parse error", nil)
	}
	msg, err := Decode(raw)
	if err != nil {
		return nil, NewErrorResponse(nil, ErrorCodeInvalidRequest, "Invalid request: "+err.Error(), nil)
	}
	return msg, nil
}
