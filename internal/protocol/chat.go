package protocol

import (
	"encoding/json"
	"fmt"
)

// ChatPayload is the only record type carried over the chat data channel.
type ChatPayload struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const chatPayloadType = "chat"

// EncodeChat marshals text into a chat record.
func EncodeChat(text string) ([]byte, error) {
	return json.Marshal(ChatPayload{Type: chatPayloadType, Text: text})
}

// DecodeChat parses a data channel record. Anything that is not a
// well-formed chat record is an error; callers log and drop it.
func DecodeChat(data []byte) (string, error) {
	var p ChatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("decode chat payload: %w", err)
	}
	if p.Type != chatPayloadType {
		return "", fmt.Errorf("unexpected data channel record type %q", p.Type)
	}
	return p.Text, nil
}
