// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package validation

import (
	"strings"
	"testing"
)

type hashPayload struct {
	SHA256 string `validate:"required,sha256hex"`
}

type scanTSPayload struct {
	ScanTS string `validate:"required,tzoffset"`
}

const validSHA = "a3f5c6d7e8091a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3"

func TestValidateStruct_SHA256Hex(t *testing.T) {
	tests := []struct {
		name    string
		sha     string
		wantErr bool
	}{
		{"valid lowercase", validSHA, false},
		{"too short", validSHA[:63], true},
		{"too long", validSHA + "a", true},
		{"uppercase rejected", strings.ToUpper(validSHA), true},
		{"non-hex char", strings.Replace(validSHA, "a", "g", 1), true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&hashPayload{SHA256: tt.sha})
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStruct_TZOffset(t *testing.T) {
	tests := []struct {
		name    string
		ts      string
		wantErr bool
	}{
		{"zulu", "2026-08-01T12:00:00Z", false},
		{"explicit offset", "2026-08-01T12:00:00+02:00", false},
		{"microseconds", "2026-08-01T12:00:00.123456+00:00", false},
		{"no offset", "2026-08-01T12:00:00", true},
		{"date only", "2026-08-01", true},
		{"empty", "", true},
		{"garbage", "yesterday", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&scanTSPayload{ScanTS: tt.ts})
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToAPIError_SingleError(t *testing.T) {
	err := ValidateStruct(&hashPayload{SHA256: "nope"})
	if err == nil {
		t.Fatal("ValidateStruct() = nil, want error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "64 lowercase hex") {
		t.Errorf("Message = %q, want sha256hex translation", apiErr.Message)
	}
	if apiErr.Details["field"] != "SHA256" {
		t.Errorf("Details.field = %v, want SHA256", apiErr.Details["field"])
	}
}

func TestToAPIError_MultipleErrors(t *testing.T) {
	type multi struct {
		SHA256 string `validate:"required,sha256hex"`
		ScanTS string `validate:"required,tzoffset"`
	}

	err := ValidateStruct(&multi{})
	if err == nil {
		t.Fatal("ValidateStruct() = nil, want error")
	}
	if len(err.Errors()) != 2 {
		t.Fatalf("Errors() len = %d, want 2", len(err.Errors()))
	}

	apiErr := err.ToAPIError()
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Errorf("Details missing fields list: %v", apiErr.Details)
	}
	if !strings.Contains(apiErr.Message, ";") {
		t.Errorf("Message should join multiple errors: %q", apiErr.Message)
	}
}
