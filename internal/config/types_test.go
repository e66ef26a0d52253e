package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("5m")); err != nil {
		t.Fatalf("UnmarshalText(5m) error = %v", err)
	}
	if d.Duration() != 5*time.Minute {
		t.Errorf("Duration() = %v, want 5m", d.Duration())
	}
}

func TestDuration_RejectsNegative(t *testing.T) {
	var d Duration
	err := d.UnmarshalText([]byte("-10s"))
	if err == nil {
		t.Fatal("expected error for negative duration")
	}
	if !strings.Contains(err.Error(), "negative") {
		t.Errorf("error = %v, want mention of negative", err)
	}
}

func TestDuration_RejectsGarbage(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	d := Duration(90 * time.Second)
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(data) != `"1m30s"` {
		t.Errorf("Marshal = %s, want \"1m30s\"", data)
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("super-secret-token")

	if s.String() != "[REDACTED]" {
		t.Errorf("String() = %q, want [REDACTED]", s.String())
	}
	if got := fmt.Sprintf("%v", s); got != "[REDACTED]" {
		t.Errorf("%%v = %q, want [REDACTED]", got)
	}
	if got := fmt.Sprintf("%#v", s); got != "Secret([REDACTED])" {
		t.Errorf("%%#v = %q, want Secret([REDACTED])", got)
	}
	if s.Value() != "super-secret-token" {
		t.Errorf("Value() = %q, want raw value", s.Value())
	}
	if !s.IsSet() {
		t.Error("IsSet() = false, want true")
	}
}

func TestSecret_EmptyStaysEmpty(t *testing.T) {
	var s Secret
	if s.String() != "" {
		t.Errorf("empty String() = %q, want empty", s.String())
	}
	if s.IsSet() {
		t.Error("IsSet() = true for empty secret")
	}
}

func TestSecret_MarshalJSON(t *testing.T) {
	type payload struct {
		Token Secret `json:"token"`
	}
	data, err := json.Marshal(payload{Token: "raw-value"})
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if strings.Contains(string(data), "raw-value") {
		t.Errorf("serialized config leaked the secret: %s", data)
	}
	if !strings.Contains(string(data), "[REDACTED]") {
		t.Errorf("serialized secret = %s, want [REDACTED]", data)
	}
}

func TestSecret_UnmarshalText(t *testing.T) {
	var s Secret
	if err := s.UnmarshalText([]byte("from-env")); err != nil {
		t.Fatalf("UnmarshalText error = %v", err)
	}
	if s.Value() != "from-env" {
		t.Errorf("Value() = %q, want from-env", s.Value())
	}
}
