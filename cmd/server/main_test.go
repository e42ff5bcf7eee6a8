package main

import (
	"testing"

	"printpos/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{Auth: config.Auth{Secret: "short", Passcode: "739154"}})
	if err == nil {
		t.Fatalf("expected short secret to be rejected")
	}

	err = validateSecurityConfig(config.Config{Auth: config.Auth{Secret: "0123456789abcdef0123456789abcdef"}})
	if err == nil {
		t.Fatalf("expected missing passcode to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{Auth: config.Auth{Secret: "0123456789abcdef0123456789abcdef", Passcode: "739154"}})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestUsesDefaultPasscode(t *testing.T) {
	if !usesDefaultPasscode(config.Config{Auth: config.Auth{Passcode: "1234"}}) {
		t.Fatalf("expected factory passcode to be flagged")
	}
	if usesDefaultPasscode(config.Config{Auth: config.Auth{Passcode: "1234", PasscodeHash: "$2a$10$x"}}) {
		t.Fatalf("expected configured hash to take precedence")
	}
}
