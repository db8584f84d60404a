package models

import (
	"errors"
	"testing"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{"breathe", ActionBreathe, false},
		{"  Heartbeat ", ActionHeartbeat, false},
		{"EYECONTACT", ActionEyeContact, false},
		{"option4", ActionOption4, false},
		{"option5", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAction(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownAction) {
				t.Errorf("ParseAction(%q) error = %v, want ErrUnknownAction", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAction(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseAction(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOptionNumber(t *testing.T) {
	if n := ActionOption3.OptionNumber(); n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
	if n := ActionJump.OptionNumber(); n != 0 {
		t.Errorf("expected 0 for non-option action, got %d", n)
	}
}

func TestIsValidEventType(t *testing.T) {
	for _, et := range []EventType{EventBaseline, EventRunningWoods, EventOrderCoffee, EventFinish} {
		if !IsValidEventType(et) {
			t.Errorf("expected %q to be valid", et)
		}
	}
	if IsValidEventType("karaoke") {
		t.Error("expected unknown event type to be invalid")
	}
	if got := EventName("karaoke"); got != "karaoke" {
		t.Errorf("EventName fallback = %q", got)
	}
}

func TestVitalClampAndPercent(t *testing.T) {
	v := Vital{Current: 140, Min: 0, Max: 100}
	v.Clamp()
	if v.Current != 100 {
		t.Errorf("expected clamp to 100, got %v", v.Current)
	}
	v.Current = -3
	v.Clamp()
	if v.Current != 0 {
		t.Errorf("expected clamp to 0, got %v", v.Current)
	}
	v.Current = 25
	if p := v.Percent(); p != 25 {
		t.Errorf("expected 25%%, got %v", p)
	}
	if p := (Vital{}).Percent(); p != 0 {
		t.Errorf("expected 0%% for zero max, got %v", p)
	}
}

func TestAPIResponseHelpers(t *testing.T) {
	ok := Success(map[string]int{"a": 1})
	if ok.Status != string(APIStatusOK) || ok.Result == nil {
		t.Errorf("unexpected success response: %+v", ok)
	}
	ign := Ignored("nothing to do")
	if ign.Status != string(APIStatusIgnored) || ign.Message != "nothing to do" {
		t.Errorf("unexpected ignored response: %+v", ign)
	}
	er := Error("boom")
	if er.Status != string(APIStatusError) || er.Message != "boom" {
		t.Errorf("unexpected error response: %+v", er)
	}
}
