package socket

import (
	"encoding/json"

	"github.com/google/uuid"
)

func generateID() string {
	return uuid.NewString()
}

func encodeMessage(event Event, ackID uint64, values ...interface{}) ([]byte, error) {
	args, err := EncodeArgs(values...)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: event, Args: args, AckID: ackID})
}

func encodeAck(ackID uint64, values ...interface{}) ([]byte, error) {
	args, err := EncodeArgs(values...)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Args: args, AckID: ackID, Ack: true})
}

func decodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, ErrInvalidMessage
	}
	if !msg.Ack && msg.Event == "" {
		return Message{}, ErrInvalidMessage
	}
	return msg, nil
}
