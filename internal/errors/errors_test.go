package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestProcessingErrorMessage(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewStorageFailedError("job-1", cause)

	msg := err.Error()
	if !strings.Contains(msg, "STORAGE_FAILED") {
		t.Errorf("Error() = %q, missing code", msg)
	}
	if !strings.Contains(msg, "connection refused") {
		t.Errorf("Error() = %q, missing cause", msg)
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := fmt.Errorf("tesseract exited")
	err := NewOCRFailedError("job-2", 3, "top_left", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	var pe *ProcessingError
	if !stderrors.As(err, &pe) {
		t.Fatal("errors.As should match *ProcessingError")
	}
	if pe.Code != ErrorOCRFailed {
		t.Errorf("Code = %q, want %q", pe.Code, ErrorOCRFailed)
	}
}

func TestOCRFailedErrorDetails(t *testing.T) {
	err := NewOCRFailedError("job-3", 7, "bottom_right", nil)

	if err.Details["page_number"] != 7 {
		t.Errorf("page_number = %v, want 7", err.Details["page_number"])
	}
	if err.Details["quadrant"] != "bottom_right" {
		t.Errorf("quadrant = %v", err.Details["quadrant"])
	}
	if err.JobID != "job-3" {
		t.Errorf("JobID = %q", err.JobID)
	}
}

func TestInvalidPayloadError(t *testing.T) {
	err := NewInvalidPayloadError("job-4", "no pages in request")

	if err.Code != ErrorInvalidPayload {
		t.Errorf("Code = %q", err.Code)
	}
	if !strings.Contains(err.Message, "no pages in request") {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Cause != nil {
		t.Error("payload errors carry no cause")
	}
}

func TestProcessingTimeoutError(t *testing.T) {
	cause := fmt.Errorf("context deadline exceeded")
	err := NewProcessingTimeoutError("job-5", 5*time.Minute, cause)

	if err.Code != ErrorProcessingTimeout {
		t.Errorf("Code = %q", err.Code)
	}
	if err.Details["timeout_duration"] != "5m0s" {
		t.Errorf("timeout_duration = %v", err.Details["timeout_duration"])
	}
}

func TestToMapFlattensDetails(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := NewOCRFailedError("job-6", 2, "top_right", cause)

	m := err.ToMap()
	if m["error_code"] != "OCR_FAILED" {
		t.Errorf("error_code = %v", m["error_code"])
	}
	if m["page_number"] != 2 {
		t.Errorf("page_number = %v", m["page_number"])
	}
	if m["cause"] != "boom" {
		t.Errorf("cause = %v", m["cause"])
	}
	if _, ok := m["timestamp"]; !ok {
		t.Error("timestamp missing from map")
	}
}
