package catalog

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		wantKind Kind
		wantKey  string
		wantErr  bool
	}{
		{"7", KindStandard, "7", false},
		{" 12 ", KindStandard, "12", false},
		{"custom-3", KindExtra, "custom-3", false},
		{"uploaded-custom-2", KindUploaded, "uploaded-custom-2", false},
		{"0", 0, "", true},
		{"13", 0, "", true},
		{"custom-99", 0, "", true},
		{"uploaded-custom-", 0, "", true},
		{"beach", 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, err := Parse(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownBackground) {
					t.Fatalf("Parse(%q) err = %v, want ErrUnknownBackground", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if id.Kind() != tt.wantKind || id.Key() != tt.wantKey {
				t.Errorf("Parse(%q) = %s %s", tt.in, id.Kind(), id.Key())
			}
		})
	}
}

func TestRulesByKind(t *testing.T) {
	tests := []struct {
		id         BackgroundID
		chargeable bool
		exclusive  bool
		surcharge  string
		name       string
	}{
		{Standard(1), true, false, "0", "Tropical Beach"},
		{Extra("23"), false, false, "0", "Phone Lesson"},
		{Uploaded("4"), true, true, "5", "Custom Upload 4"},
	}
	for _, tt := range tests {
		t.Run(tt.id.Key(), func(t *testing.T) {
			if tt.id.Chargeable() != tt.chargeable {
				t.Errorf("Chargeable = %v", tt.id.Chargeable())
			}
			if tt.id.Exclusive() != tt.exclusive {
				t.Errorf("Exclusive = %v", tt.id.Exclusive())
			}
			if tt.id.Surcharge().String() != tt.surcharge {
				t.Errorf("Surcharge = %s", tt.id.Surcharge())
			}
			if tt.id.Name() != tt.name {
				t.Errorf("Name = %q", tt.id.Name())
			}
		})
	}
}

func TestJSON_MixedShape(t *testing.T) {
	ids := []BackgroundID{Standard(3), Extra("1"), Uploaded("2")}
	data, err := json.Marshal(ids)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `[3,"custom-1","uploaded-custom-2"]` {
		t.Fatalf("Marshal = %s", data)
	}

	var back []BackgroundID
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for i := range ids {
		if back[i] != ids[i] {
			t.Errorf("[%d] = %v, want %v", i, back[i], ids[i])
		}
	}

	var bad BackgroundID
	if err := json.Unmarshal([]byte(`42`), &bad); err == nil {
		t.Error("expected error for out-of-catalog number")
	}
}

func TestListings(t *testing.T) {
	got := Standards([]int{12, 1, 5})
	if len(got) != 3 || got[0].Name != "Tropical Beach" || got[2].Name != "London Bridge" {
		t.Errorf("Standards = %+v", got)
	}
	extras := Extras()
	if len(extras) != 23 || extras[0].ID.Key() != "custom-1" || extras[22].Name != "Phone Lesson" {
		t.Errorf("Extras first=%v last=%v len=%d", extras[0], extras[len(extras)-1], len(extras))
	}
}

func TestDecodeStored(t *testing.T) {
	tests := []struct {
		in       string
		wantKind Kind
		wantKey  string
		wantJSON string
		wantErr  bool
	}{
		{`3`, KindStandard, "3", `3`, false},
		{`"custom-1"`, KindExtra, "custom-1", `"custom-1"`, false},
		{`"custom-99"`, KindUnrecognized, "custom-99", `"custom-99"`, false},
		{`42`, KindUnrecognized, "42", `42`, false},
		{`null`, 0, "", "", true},
		{`""`, 0, "", "", true},
		{`{"id":3}`, 0, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, err := DecodeStored([]byte(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeStored(%s) = %v, want error", tt.in, id)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeStored(%s): %v", tt.in, err)
			}
			if id.Kind() != tt.wantKind || id.Key() != tt.wantKey {
				t.Errorf("DecodeStored(%s) = %s %s", tt.in, id.Kind(), id.Key())
			}
			data, err := json.Marshal(id)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(data) != tt.wantJSON {
				t.Errorf("Marshal = %s, want %s", data, tt.wantJSON)
			}
		})
	}

	var strict BackgroundID
	if err := json.Unmarshal([]byte(`"custom-99"`), &strict); !errors.Is(err, ErrUnknownBackground) {
		t.Errorf("request decoding must stay strict, got %v", err)
	}
	if id := (BackgroundID{kind: KindUnrecognized, tag: "x"}); id.Chargeable() {
		t.Error("unrecognized ids must not be charged")
	}
}
