package protocol

import "testing"

func TestParse_MissingType(t *testing.T) {
	_, err := Parse([]byte(`{"version":"2.0"}`))
	if err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestParse_UnknownVersion(t *testing.T) {
	_, err := Parse([]byte(`{"type":"event","version":"1.0"}`))
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestParse_OversizedFrame(t *testing.T) {
	big := make([]byte, MaxFrameBytes+1)
	for i := range big {
		big[i] = 'a'
	}
	_, err := Parse(big)
	if err == nil {
		t.Fatal("expected error for oversized frame")
	}
}

func TestNewRequest_RoundTrip(t *testing.T) {
	msg, err := NewRequest("whitelist.add", map[string]string{"player": "Alice"})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	raw, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Type != TypeRequest || parsed.Op != "whitelist.add" || parsed.ID == "" {
		t.Fatalf("unexpected parsed message: %+v", parsed)
	}

	var data map[string]string
	if err := UnmarshalData(parsed, &data); err != nil {
		t.Fatalf("UnmarshalData: %v", err)
	}
	if data["player"] != "Alice" {
		t.Fatalf("expected player=Alice, got %v", data)
	}
}

func TestNewResponse_CorrelatesByID(t *testing.T) {
	resp, err := NewResponse("req-123", "whitelist.add", map[string]bool{"ok": true})
	if err != nil {
		t.Fatalf("NewResponse: %v", err)
	}
	if resp.ID != "req-123" {
		t.Fatalf("expected response id to match request id, got %s", resp.ID)
	}
}
