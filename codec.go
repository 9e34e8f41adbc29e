package msgrelay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrMalformedMessage indicates that a relay payload could not be decoded.
var ErrMalformedMessage = errors.New("malformed message")

type wireMessage struct {
	Username *string `json:"username"`
	Message  *string `json:"message"`
}

// EncodeMessage returns the relay payload for msg.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a relay payload. It must be a single JSON object
// holding exactly the string fields "username" and "message".
func DecodeMessage(data []byte) (Message, error) {
	if !utf8.Valid(data) {
		return Message{}, fmt.Errorf("%w: invalid UTF-8", ErrMalformedMessage)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var wire wireMessage
	if err := dec.Decode(&wire); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Message{}, fmt.Errorf("%w: trailing data after object", ErrMalformedMessage)
	}

	if wire.Username == nil {
		return Message{}, fmt.Errorf("%w: missing username", ErrMalformedMessage)
	}
	if wire.Message == nil {
		return Message{}, fmt.Errorf("%w: missing message", ErrMalformedMessage)
	}

	return Message{Username: *wire.Username, Message: *wire.Message}, nil
}
