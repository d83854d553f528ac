package protocol

import (
	"encoding/json"
	"strings"

	"github.com/calbright/smartcast/internal/logging"
)

const resultSuccess = "success"

// envelope is the outer shape of every control API response
type envelope struct {
	Status *status         `json:"STATUS"`
	Item   json.RawMessage `json:"ITEM"`
	Items  json.RawMessage `json:"ITEMS"`
	URI    string          `json:"URI"`
}

type status struct {
	Result string `json:"RESULT"`
	Detail string `json:"DETAIL"`
}

// result normalizes the RESULT field for comparison; firmware is not
// consistent about case
func (s *status) result() string {
	return strings.ToLower(strings.TrimSpace(s.Result))
}

// Response is a successfully parsed control API response. Extractors pull
// typed payloads out of the ITEM/ITEMS fields; a payload that does not
// match the expected shape is a ProtocolError.
type Response struct {
	env envelope
}

// pairingItem is the ITEM payload of pairing start/cancel responses
type pairingItem struct {
	PairingReqToken int    `json:"PAIRING_REQ_TOKEN"`
	ChallengeType   int    `json:"CHALLENGE_TYPE"`
	AuthToken       string `json:"AUTH_TOKEN"`
}

// PairingInfo extracts the pairing process identifier and challenge type
// from a pairing start response
func (r *Response) PairingInfo() (reqToken int, challengeType int, err error) {
	if len(r.env.Item) == 0 {
		return 0, 0, &ProtocolError{Message: "pairing response has no ITEM"}
	}
	var item pairingItem
	if jsonErr := json.Unmarshal(r.env.Item, &item); jsonErr != nil {
		return 0, 0, &ProtocolError{Message: "malformed pairing ITEM", Err: jsonErr}
	}
	if item.PairingReqToken == 0 {
		return 0, 0, &ProtocolError{Message: "pairing response has no PAIRING_REQ_TOKEN"}
	}
	return item.PairingReqToken, item.ChallengeType, nil
}

// AuthToken extracts the auth token from a pairing completion response
func (r *Response) AuthToken() (string, error) {
	if len(r.env.Item) == 0 {
		return "", &ProtocolError{Message: "pairing response has no ITEM"}
	}
	var item pairingItem
	if err := json.Unmarshal(r.env.Item, &item); err != nil {
		return "", &ProtocolError{Message: "malformed pairing ITEM", Err: err}
	}
	if item.AuthToken == "" {
		return "", &ProtocolError{Message: "pairing response has no AUTH_TOKEN"}
	}
	return item.AuthToken, nil
}

// DecodeItems unmarshals the ITEMS array into v
func (r *Response) DecodeItems(v any) error {
	if len(r.env.Items) == 0 {
		return &ProtocolError{Message: "response has no ITEMS"}
	}
	if err := json.Unmarshal(r.env.Items, v); err != nil {
		return &ProtocolError{Message: "malformed ITEMS payload", Err: err}
	}
	return nil
}

// DecodeFirstItem unmarshals the first entry of the ITEMS array into v
func (r *Response) DecodeFirstItem(v any) error {
	var items []json.RawMessage
	if err := r.DecodeItems(&items); err != nil {
		return err
	}
	if len(items) == 0 {
		return &ProtocolError{Message: "response ITEMS is empty"}
	}
	if err := json.Unmarshal(items[0], v); err != nil {
		return &ProtocolError{Message: "malformed ITEMS entry", Err: err}
	}
	return nil
}

// FirstItemValue unmarshals the VALUE field of the first ITEMS entry into v
func (r *Response) FirstItemValue(v any) error {
	var item struct {
		Value json.RawMessage `json:"VALUE"`
	}
	if err := r.DecodeFirstItem(&item); err != nil {
		return err
	}
	if len(item.Value) == 0 {
		return &ProtocolError{Message: "response item has no VALUE"}
	}
	if err := json.Unmarshal(item.Value, v); err != nil {
		return &ProtocolError{Message: "malformed item VALUE", Err: err}
	}
	return nil
}

// ParseEnvelope interprets a raw control API body the same way Send does.
// Useful for replaying recorded device traffic and for test doubles.
func ParseEnvelope(statusCode int, raw []byte) (*Response, error) {
	return interpret("", statusCode, raw)
}

func logRequest(method, url string, authenticated bool) {
	logging.LogRequest(method, url, authenticated)
}

func logResponse(url string, statusCode int, result string) {
	logging.LogResponse(url, statusCode, result)
}
