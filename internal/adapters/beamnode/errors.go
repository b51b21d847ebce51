package beamnode

import (
	"errors"
	"fmt"
)

// RPCError is a JSON-RPC error object returned by the wallet node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Error implements the error interface
func (e *RPCError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("node rpc error [%d]: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("node rpc error [%d]: %s", e.Code, e.Message)
}

// AsRPCError unwraps err into an *RPCError if the node rejected the call.
// Transport and decoding failures return false.
func AsRPCError(err error) (*RPCError, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}
