package kerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewNil(t *testing.T) {
	if err := New(CodeNetwork, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestFromStatus(t *testing.T) {
	cases := []struct {
		status int
		code   Code
	}{
		{http.StatusUnauthorized, CodeAuthentication},
		{http.StatusForbidden, CodeAuthentication},
		{http.StatusNotFound, CodeNotFound},
		{http.StatusInternalServerError, CodeServer},
		{http.StatusUnprocessableEntity, CodeServer},
	}
	for _, c := range cases {
		err := FromStatus(c.status, "")
		if got := CodeOf(err); got != c.code {
			t.Errorf("status %d: expected %s, got %s", c.status, c.code, got)
		}
		if StatusOf(err) != c.status {
			t.Errorf("status %d: StatusOf returned %d", c.status, StatusOf(err))
		}
	}
}

func TestFromStatusMessage(t *testing.T) {
	err := FromStatus(http.StatusNotFound, "Job not found")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Message != "Job not found" {
		t.Errorf("unexpected message %q", e.Message)
	}

	err = FromStatus(http.StatusBadGateway, "")
	if !errors.As(err, &e) || e.Message != "Bad Gateway" {
		t.Errorf("expected status text fallback, got %v", err)
	}
}

func TestIsCodeThroughWrap(t *testing.T) {
	base := New(CodeNetwork, errors.New("dial tcp: refused"))
	wrapped := fmt.Errorf("polling job: %w", base)
	if !IsNetwork(wrapped) {
		t.Fatal("expected wrapped error to report network code")
	}
	if IsAuthentication(wrapped) || IsNotFound(wrapped) || IsServer(wrapped) {
		t.Fatal("unexpected code match")
	}
	if CodeOf(errors.New("plain")) != CodeUnknown {
		t.Fatal("plain errors should be unknown")
	}
}
