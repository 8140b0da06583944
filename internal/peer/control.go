package peer

import "github.com/vmihailenco/msgpack/v5"

// controlChannelLabel names the per-peer metadata data channel. The
// offering side creates it; both sides announce themselves on it.
const controlChannelLabel = "huddle-meta"

// Control message type constants.
const (
	ControlTypeHello = "hello"
)

// ControlMessage represents all control data channel messages.
type ControlMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// HelloPayload announces the local participant to the remote side.
type HelloPayload struct {
	Name    string `msgpack:"name"`
	Version string `msgpack:"version"`
}

// DecodePayload decodes the message payload into the provided struct
func (m ControlMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewControlMessage creates a new ControlMessage with the given type and payload
func NewControlMessage(t string, payload any) (ControlMessage, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return ControlMessage{}, err
	}

	return ControlMessage{
		Type:    t,
		Payload: b,
	}, nil
}

func encodeControl(msg ControlMessage) ([]byte, error) {
	return msgpack.Marshal(msg)
}

func decodeControl(data []byte, msg *ControlMessage) error {
	return msgpack.Unmarshal(data, msg)
}
