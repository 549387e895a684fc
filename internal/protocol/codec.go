package protocol

import (
	"encoding/json"
	"fmt"
)

// DecodeError reports a frame that could not be parsed or that is missing
// a field its type requires. Callers answer with an error frame and keep
// the connection open.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses a raw client frame into its tagged form and checks that
// the fields the type requires are present. An unknown type is not an
// error here: the message loop answers it with an error frame without
// dropping the connection.
func Decode(raw []byte) (Inbound, *DecodeError) {
	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Inbound{}, &DecodeError{Reason: "malformed JSON", Err: err}
	}
	if msg.Type == "" {
		return Inbound{}, &DecodeError{Reason: "missing message type"}
	}

	switch msg.Type {
	case MsgSubscribe, MsgUnsubscribe:
		if msg.Channel == "" {
			return Inbound{}, &DecodeError{Reason: fmt.Sprintf("%s requires a channel", msg.Type)}
		}
	case MsgQueryIntelligence:
		if msg.Query == nil {
			return Inbound{}, &DecodeError{Reason: "query_intelligence requires a query object"}
		}
	}

	return msg, nil
}

// Encode marshals an outbound frame: the payload's fields flattened onto
// one JSON object with the type injected alongside. A payload that cannot
// be marshaled is stringified instead of failing the send, so a bad field
// in an opaque update never takes the frame (or the process) down.
func Encode(msgType MessageType, payload any) ([]byte, error) {
	fields := map[string]json.RawMessage{}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			// Fallback: represent the whole payload as a string.
			data, err = json.Marshal(map[string]string{"data": fmt.Sprintf("%v", payload)})
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", msgType, err)
			}
		}
		// Payloads are always structs or maps, so this unmarshal only
		// fails if the fallback above produced a non-object.
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("encode %s: %w", msgType, err)
		}
	}

	typeTag, err := json.Marshal(msgType)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msgType, err)
	}
	fields["type"] = typeTag

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msgType, err)
	}
	return out, nil
}
