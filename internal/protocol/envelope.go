package protocol

import (
	"encoding/json"
	"fmt"
)

// Request is the JSON envelope Artisan sends in a text frame. Only the
// correlation id matters; any other fields are ignored.
type Request struct {
	ID int64 `json:"id"`
}

// Response is the envelope Artisan expects back. Temp1 carries the bean
// temperature (input1 in Artisan's device setup), Temp2 is reserved for an
// environment sensor and reads zero without one. Field names are fixed by
// Artisan's WebSocket device schema.
type Response struct {
	ID   int64        `json:"id"`
	Data ResponseData `json:"data"`
}

// ResponseData holds the sampled channel values.
type ResponseData struct {
	Temp1 float64 `json:"temp1"`
	Temp2 float64 `json:"temp2"`
}

// ParseRequest decodes a text-frame payload into a Request.
func ParseRequest(payload []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request envelope: %w", err)
	}
	return &req, nil
}

// BuildResponse encodes a response envelope echoing the request's id.
func BuildResponse(id int64, temp1, temp2 float64) ([]byte, error) {
	resp := Response{
		ID:   id,
		Data: ResponseData{Temp1: temp1, Temp2: temp2},
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response envelope: %w", err)
	}
	return data, nil
}
