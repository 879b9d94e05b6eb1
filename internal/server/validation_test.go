package server

import (
	"encoding/json"
	"math"
	"testing"
)

func TestJSONIDCoercion(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
		value   int64
		ok      bool
	}{
		{name: "number", payload: `{"id":42}`, value: 42, ok: true},
		{name: "numeric string", payload: `{"id":" 17 "}`, value: 17, ok: true},
		{name: "integral float", payload: `{"id":3.0}`, value: 3, ok: true},
		{name: "fraction", payload: `{"id":3.5}`, ok: false},
		{name: "word", payload: `{"id":"abc"}`, ok: false},
		{name: "null", payload: `{"id":null}`, ok: false},
		{name: "absent", payload: `{}`, ok: false},
		{name: "boolean", payload: `{"id":true}`, ok: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var decoded struct {
				ID jsonID `json:"id"`
			}
			if err := json.Unmarshal([]byte(testCase.payload), &decoded); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			value, ok := decoded.ID.Int64()
			if ok != testCase.ok || (ok && value != testCase.value) {
				t.Fatalf("got (%d, %v), want (%d, %v)", value, ok, testCase.value, testCase.ok)
			}
		})
	}
}

func TestParseIntegerRejectsOutOfRange(t *testing.T) {
	testCases := []struct {
		raw   string
		value int64
		ok    bool
	}{
		{raw: "9223372036854775807", value: math.MaxInt64, ok: true},
		{raw: "9223372036854775808", ok: false},
		{raw: "-9223372036854775809", ok: false},
		{raw: "9.223372036854775808e18", ok: false},
		{raw: "1e3", value: 1000, ok: true},
	}
	for _, testCase := range testCases {
		value, ok := parseInteger(testCase.raw)
		if ok != testCase.ok {
			t.Fatalf("parseInteger(%q) ok=%v, expected %v", testCase.raw, ok, testCase.ok)
		}
		if ok && value != testCase.value {
			t.Fatalf("parseInteger(%q)=%d, expected %d", testCase.raw, value, testCase.value)
		}
	}
}

func TestJSONIDRequiresPositiveValues(t *testing.T) {
	var decoded struct {
		ID jsonID `json:"id"`
	}
	if err := json.Unmarshal([]byte(`{"id":0}`), &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, err := decoded.ID.itemID(); err == nil {
		t.Fatalf("expected zero to be rejected")
	}
	if _, err := decoded.ID.userID(); err == nil {
		t.Fatalf("expected zero to be rejected")
	}
}

func TestOptionalStringDistinguishesNullFromAbsent(t *testing.T) {
	var decoded struct {
		Image optionalString `json:"image"`
		Name  optionalString `json:"name"`
		Tier  optionalString `json:"tier"`
	}
	if err := json.Unmarshal([]byte(`{"image":null,"name":"Mew"}`), &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !decoded.Image.set || !decoded.Image.null {
		t.Fatalf("expected explicit null image, got %+v", decoded.Image)
	}
	if !decoded.Name.set || decoded.Name.null || decoded.Name.value != "Mew" {
		t.Fatalf("expected name value, got %+v", decoded.Name)
	}
	if decoded.Tier.set {
		t.Fatalf("expected absent tier, got %+v", decoded.Tier)
	}
}

func TestImagePointerTreatsBlankAsCleared(t *testing.T) {
	if imagePointer("   ") != nil {
		t.Fatalf("expected blank image to clear")
	}
	if got := imagePointer(" /images/a.png "); got == nil || *got != "/images/a.png" {
		t.Fatalf("unexpected image pointer %v", got)
	}
}
