package rateguard

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateAcceptsAtOrBelowCap(t *testing.T) {
	cases := []struct {
		name      string
		hostCount int
		interval  time.Duration
	}{
		{"exactly at cap", 50, time.Second},
		{"below cap", 25, time.Second},
		{"long interval", 100, 2 * time.Second},
		{"very long interval", 500, 10 * time.Second},
		{"single host short interval", 1, 100 * time.Millisecond},
		{"fractional interval at cap", 25, 500 * time.Millisecond},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate(tc.hostCount, tc.interval); err != nil {
				t.Fatalf("Validate(%d, %s) returned error: %v", tc.hostCount, tc.interval, err)
			}
		})
	}
}

func TestValidateRejectsAboveCap(t *testing.T) {
	err := Validate(60, time.Second)
	if err == nil {
		t.Fatalf("expected rejection for 60 hosts at 1s")
	}

	var rejection *RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("expected *RejectionError, got %T", err)
	}
	if rejection.Rate != 60.0 {
		t.Fatalf("expected observed rate 60.0, got %v", rejection.Rate)
	}
	if rejection.MinInterval != 1200*time.Millisecond {
		t.Fatalf("expected suggested interval 1.2s, got %s", rejection.MinInterval)
	}
	if rejection.MaxHosts != 50 {
		t.Fatalf("expected suggested max hosts 50, got %d", rejection.MaxHosts)
	}
	if !strings.Contains(err.Error(), "increase the interval") {
		t.Fatalf("expected actionable suggestion in message, got %q", err.Error())
	}
}

func TestValidateRejectsShortInterval(t *testing.T) {
	err := Validate(50, 500*time.Millisecond)
	if err == nil {
		t.Fatalf("expected rejection for 50 hosts at 0.5s")
	}
	var rejection *RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("expected *RejectionError, got %T", err)
	}
	if rejection.Rate != 100.0 {
		t.Fatalf("expected observed rate 100.0, got %v", rejection.Rate)
	}
}

func TestValidateInvalidParameters(t *testing.T) {
	for _, tc := range []struct {
		hostCount int
		interval  time.Duration
	}{
		{0, time.Second},
		{-5, time.Second},
		{10, 0},
		{10, -time.Second},
	} {
		if err := Validate(tc.hostCount, tc.interval); !errors.Is(err, ErrInvalidParameters) {
			t.Fatalf("Validate(%d, %s) = %v, want ErrInvalidParameters", tc.hostCount, tc.interval, err)
		}
	}
}
