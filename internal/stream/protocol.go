package stream

import (
	"encoding/json"

	"github.com/oikos-cash/oikos-data-bsc/internal/model"
)

// Subprotocol is the websocket subprotocol of subscriptions-transport-ws.
const Subprotocol = "graphql-ws"

// Message types of the graphql-ws protocol.
const (
	msgConnectionInit      = "connection_init"
	msgConnectionAck       = "connection_ack"
	msgConnectionError     = "connection_error"
	msgConnectionTerminate = "connection_terminate"
	msgKeepAlive           = "ka"
	msgStart               = "start"
	msgStop                = "stop"
	msgData                = "data"
	msgError               = "error"
	msgComplete            = "complete"
)

const operationID = "1"

type message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type startPayload struct {
	Query string `json:"query"`
}

// Payload is one pushed result: entity name to raw records.
type Payload struct {
	Data   map[string][]model.RawRecord `json:"data"`
	Errors []GraphQLError               `json:"errors,omitempty"`
}

// GraphQLError is an error entry of a pushed result.
type GraphQLError struct {
	Message string `json:"message"`
}

func (e GraphQLError) Error() string {
	return e.Message
}
