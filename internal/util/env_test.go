package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		def   bool
		want  bool
	}{
		{"unset uses default", "", true, true},
		{"yes", "yes", false, true},
		{"OFF", "OFF", true, false},
		{"garbage uses default", "maybe", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BODYCONTROL_TEST_BOOL", tt.value)
			if got := ParseBoolEnv("BODYCONTROL_TEST_BOOL", tt.def); got != tt.want {
				t.Errorf("ParseBoolEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseUint64Env(t *testing.T) {
	t.Setenv("BODYCONTROL_TEST_SEED", "1234")
	if got := ParseUint64Env("BODYCONTROL_TEST_SEED", 9); got != 1234 {
		t.Errorf("ParseUint64Env() = %d, want 1234", got)
	}
	t.Setenv("BODYCONTROL_TEST_SEED", "-1")
	if got := ParseUint64Env("BODYCONTROL_TEST_SEED", 9); got != 9 {
		t.Errorf("ParseUint64Env() with invalid value = %d, want default 9", got)
	}
}

func TestStringEnv(t *testing.T) {
	t.Setenv("BODYCONTROL_TEST_A", "")
	t.Setenv("BODYCONTROL_TEST_B", " second ")
	if got := StringEnv("fallback", "BODYCONTROL_TEST_A", "BODYCONTROL_TEST_B"); got != "second" {
		t.Errorf("StringEnv() = %q, want %q", got, "second")
	}
	if got := StringEnv("fallback", "BODYCONTROL_TEST_A"); got != "fallback" {
		t.Errorf("StringEnv() = %q, want fallback", got)
	}
}
