// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a thread-safe
// singleton validator instance with custom validators and user-friendly error
// messages. It integrates with the API's error format for consistent error
// responses.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Custom isotime validator for seconds-precision ISO timestamps
//   - Error translation to human-readable messages
//   - APIError conversion matching the API's VALIDATION_ERROR format
//   - Future v11 compatibility with WithRequiredStructEnabled
//
// # Quick Start
//
//	type SeriesRequest struct {
//	    TurbineID string `validate:"required"`
//	    Start     string `validate:"required,isotime"`
//	    End       string `validate:"required,isotime"`
//	}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    req := SeriesRequest{
//	        TurbineID: chi.URLParam(r, "turbineID"),
//	        Start:     r.URL.Query().Get("start"),
//	        End:       r.URL.Query().Get("end"),
//	    }
//
//	    if verr := validation.ValidateStruct(&req); verr != nil {
//	        apiErr := verr.ToAPIError()
//	        respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	        return
//	    }
//
//	    // proceed with valid request
//	}
//
// # Common Validation Tags
//
// String validations:
//   - required: Field must not be empty
//   - min=n: Minimum length n characters
//   - max=n: Maximum length n characters
//   - email: Valid email format
//   - numeric: Digits only
//   - isotime: Timestamp in 2006-01-02T15:04:05 format (custom)
//
// Numeric validations:
//   - gte=n: Greater than or equal to n
//   - lte=n: Less than or equal to n
//   - min=n: Minimum value n
//   - max=n: Maximum value n
//
// Enum validations:
//   - oneof=a b c: Must be one of the specified values
//
// # API Error Integration
//
// The ToAPIError method produces errors matching the response envelope:
//
//	// Single field error
//	{
//	    "code": "VALIDATION_ERROR",
//	    "message": "Start must be a timestamp in YYYY-MM-DDTHH:MM:SS format",
//	    "details": {"field": "Start", "tag": "isotime", "value": "01.03.2024"}
//	}
//
//	// Multiple field errors
//	{
//	    "code": "VALIDATION_ERROR",
//	    "message": "Start: required; End: required",
//	    "details": {
//	        "fields": [
//	            {"field": "Start", "tag": "required", "message": "..."},
//	            {"field": "End", "tag": "required", "message": "..."}
//	        ]
//	    }
//	}
//
// # Thread Safety
//
// The singleton validator is initialized once and safe for concurrent use:
//
//	validate := validation.GetValidator()  // Thread-safe
//	err := validation.ValidateStruct(&req) // Thread-safe
//
// # See Also
//
//   - internal/api: Request handlers using validation
//   - github.com/go-playground/validator/v10: Underlying library
package validation
