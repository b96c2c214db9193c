package jsoncodec

import (
	"bytes"
	"testing"
)

func TestMarshalUnmarshal(t *testing.T) {
	in := map[string]any{"subject": "Hello", "count": float64(2)}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out map[string]any
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["subject"] != "Hello" || out["count"] != float64(2) {
		t.Errorf("unexpected decoded value: %v", out)
	}
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, struct {
		ID string `json:"id"`
	}{ID: "abc"}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := Decode(&buf, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != "abc" {
		t.Errorf("expected id abc, got %q", out.ID)
	}
}
