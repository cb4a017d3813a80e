// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

package validation

import (
	"strings"
	"testing"
)

// ===================================================================================================
// Singleton Validator Tests
// ===================================================================================================

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}

	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

// ===================================================================================================
// ValidateStruct Tests
// ===================================================================================================

// seriesRequest mirrors the series endpoint's query parameters.
type seriesRequest struct {
	TurbineID string `validate:"required"`
	Start     string `validate:"required,isotime"`
	End       string `validate:"required,isotime"`
}

// statsRequest mirrors the stats endpoint's path parameter.
type statsRequest struct {
	UserID string `validate:"required,numeric"`
}

func TestValidateStruct_SeriesRequest(t *testing.T) {
	tests := []struct {
		name      string
		input     seriesRequest
		wantErr   bool
		wantField string
	}{
		{
			name: "valid request",
			input: seriesRequest{
				TurbineID: "A7",
				Start:     "2024-03-01T00:00:00",
				End:       "2024-03-02T00:00:00",
			},
		},
		{
			name: "missing start",
			input: seriesRequest{
				TurbineID: "A7",
				End:       "2024-03-02T00:00:00",
			},
			wantErr:   true,
			wantField: "Start",
		},
		{
			name: "start with timezone designator",
			input: seriesRequest{
				TurbineID: "A7",
				Start:     "2024-03-01T00:00:00Z",
				End:       "2024-03-02T00:00:00",
			},
			wantErr:   true,
			wantField: "Start",
		},
		{
			name: "end with raw csv format",
			input: seriesRequest{
				TurbineID: "A7",
				Start:     "2024-03-01T00:00:00",
				End:       "01.03.2024, 00:10",
			},
			wantErr:   true,
			wantField: "End",
		},
		{
			name: "end without seconds",
			input: seriesRequest{
				TurbineID: "A7",
				Start:     "2024-03-01T00:00:00",
				End:       "2024-03-02T00:00",
			},
			wantErr:   true,
			wantField: "End",
		},
		{
			name: "missing turbine id",
			input: seriesRequest{
				Start: "2024-03-01T00:00:00",
				End:   "2024-03-02T00:00:00",
			},
			wantErr:   true,
			wantField: "TurbineID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.input)
			if !tt.wantErr {
				if verr != nil {
					t.Fatalf("ValidateStruct() unexpected error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("ValidateStruct() expected error")
			}

			found := false
			for _, fe := range verr.Errors() {
				if fe.Field() == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("ValidateStruct() errors %v do not mention field %q", verr, tt.wantField)
			}
		})
	}
}

func TestValidateStruct_StatsRequest(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		wantErr bool
	}{
		{name: "numeric id", userID: "7"},
		{name: "large id", userID: "123456"},
		{name: "empty", userID: "", wantErr: true},
		{name: "alphanumeric", userID: "7a", wantErr: true},
		{name: "negative sign rejected", userID: "-7", wantErr: false}, // numeric accepts a leading sign
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&statsRequest{UserID: tt.userID})
			if (verr != nil) != tt.wantErr {
				t.Errorf("ValidateStruct(UserID=%q) error = %v, wantErr %v", tt.userID, verr, tt.wantErr)
			}
		})
	}
}

// ===================================================================================================
// Error Translation Tests
// ===================================================================================================

func TestToAPIError_SingleField(t *testing.T) {
	verr := ValidateStruct(&seriesRequest{
		TurbineID: "A7",
		Start:     "not-a-timestamp",
		End:       "2024-03-02T00:00:00",
	})
	if verr == nil {
		t.Fatal("expected validation error")
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "Start") {
		t.Errorf("Message %q does not name the failing field", apiErr.Message)
	}
	if apiErr.Details["field"] != "Start" {
		t.Errorf("Details[field] = %v, want Start", apiErr.Details["field"])
	}
	if apiErr.Details["tag"] != "isotime" {
		t.Errorf("Details[tag] = %v, want isotime", apiErr.Details["tag"])
	}
}

func TestToAPIError_MultipleFields(t *testing.T) {
	verr := ValidateStruct(&seriesRequest{TurbineID: "A7"})
	if verr == nil {
		t.Fatal("expected validation error")
	}
	if len(verr.Errors()) != 2 {
		t.Fatalf("got %d field errors, want 2 (Start and End)", len(verr.Errors()))
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("Details[fields] is %T, want []map[string]interface{}", apiErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Errorf("Details lists %d fields, want 2", len(fields))
	}
}

func TestValidateStruct_ValidReturnsNil(t *testing.T) {
	if verr := ValidateStruct(&statsRequest{UserID: "1"}); verr != nil {
		t.Errorf("ValidateStruct() = %v, want nil for a valid struct", verr)
	}
}
