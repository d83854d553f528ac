package protocol

import (
	"testing"
)

func mustParse(t *testing.T, raw string) *Response {
	t.Helper()
	resp, err := ParseEnvelope(200, []byte(raw))
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	return resp
}

func TestPairingInfo(t *testing.T) {
	resp := mustParse(t, `{"STATUS":{"RESULT":"SUCCESS"},"ITEM":{"PAIRING_REQ_TOKEN":1234567,"CHALLENGE_TYPE":1}}`)
	reqToken, challenge, err := resp.PairingInfo()
	if err != nil {
		t.Fatalf("PairingInfo() error = %v", err)
	}
	if reqToken != 1234567 {
		t.Errorf("reqToken = %d, want 1234567", reqToken)
	}
	if challenge != 1 {
		t.Errorf("challengeType = %d, want 1", challenge)
	}
}

func TestPairingInfo_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no item", `{"STATUS":{"RESULT":"SUCCESS"}}`},
		{"missing token", `{"STATUS":{"RESULT":"SUCCESS"},"ITEM":{"CHALLENGE_TYPE":1}}`},
		{"wrong type", `{"STATUS":{"RESULT":"SUCCESS"},"ITEM":{"PAIRING_REQ_TOKEN":"abc"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := mustParse(t, tt.raw)
			if _, _, err := resp.PairingInfo(); !IsProtocolError(err) {
				t.Errorf("PairingInfo() error = %v, want ProtocolError", err)
			}
		})
	}
}

func TestAuthToken(t *testing.T) {
	resp := mustParse(t, `{"STATUS":{"RESULT":"SUCCESS"},"ITEM":{"AUTH_TOKEN":"Zaabbccdd"}}`)
	token, err := resp.AuthToken()
	if err != nil {
		t.Fatalf("AuthToken() error = %v", err)
	}
	if token != "Zaabbccdd" {
		t.Errorf("token = %q, want Zaabbccdd", token)
	}

	resp = mustParse(t, `{"STATUS":{"RESULT":"SUCCESS"},"ITEM":{}}`)
	if _, err := resp.AuthToken(); !IsProtocolError(err) {
		t.Errorf("AuthToken() on empty ITEM: error = %v, want ProtocolError", err)
	}
}

func TestFirstItemValue(t *testing.T) {
	resp := mustParse(t, `{"STATUS":{"RESULT":"SUCCESS"},"ITEMS":[{"CNAME":"power_mode","VALUE":1}]}`)
	var v int
	if err := resp.FirstItemValue(&v); err != nil {
		t.Fatalf("FirstItemValue() error = %v", err)
	}
	if v != 1 {
		t.Errorf("value = %d, want 1", v)
	}

	resp = mustParse(t, `{"STATUS":{"RESULT":"SUCCESS"},"ITEMS":[]}`)
	if err := resp.FirstItemValue(&v); !IsProtocolError(err) {
		t.Errorf("FirstItemValue() on empty ITEMS: error = %v, want ProtocolError", err)
	}
}

func TestDecodeItems(t *testing.T) {
	resp := mustParse(t, `{"STATUS":{"RESULT":"SUCCESS"},"ITEMS":[{"CNAME":"a"},{"CNAME":"b"}]}`)
	var items []struct {
		CName string `json:"CNAME"`
	}
	if err := resp.DecodeItems(&items); err != nil {
		t.Fatalf("DecodeItems() error = %v", err)
	}
	if len(items) != 2 || items[0].CName != "a" || items[1].CName != "b" {
		t.Errorf("items = %+v, want [a b]", items)
	}
}
