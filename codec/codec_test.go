package codec

import "testing"

func TestStatusStrings(t *testing.T) {
	cases := map[Status]string{
		StatusOK:            "OK",
		StatusNoOutput:      "NO_OUTPUT",
		StatusErrParameter:  "ERR_PARAMETER",
		StatusUninitialized: "UNINITIALIZED",
		StatusErrEncode:     "ERR_ENCODE",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", status, got, want)
		}
	}
}

func TestStatusErr(t *testing.T) {
	if StatusOK.Err() != nil {
		t.Fatalf("OK should map to a nil error")
	}
	if StatusNoOutput.Err() != nil {
		t.Fatalf("NO_OUTPUT is not a failure")
	}
	if StatusErrEncode.Err() == nil {
		t.Fatalf("ERR_ENCODE should map to an error")
	}
}

func TestSettingsValid(t *testing.T) {
	s := DefaultSettings()
	if !s.Valid() {
		t.Fatalf("default settings should be valid: %+v", s)
	}
	if s.Cores <= 0 {
		t.Fatalf("core count not detected")
	}

	var nilSettings *Settings
	if nilSettings.Valid() {
		t.Fatalf("nil settings reported valid")
	}
	bad := s
	bad.Width = 0
	if bad.Valid() {
		t.Fatalf("zero width reported valid")
	}
	bad = s
	bad.FPS = -1
	if bad.Valid() {
		t.Fatalf("negative fps reported valid")
	}
}

func TestWantsKeyFrame(t *testing.T) {
	var nilInfo *EncodeInfo
	if nilInfo.WantsKeyFrame() {
		t.Fatalf("nil info wants a key frame")
	}
	if (&EncodeInfo{}).WantsKeyFrame() {
		t.Fatalf("empty info wants a key frame")
	}
	if (&EncodeInfo{FrameTypes: []FrameType{FrameDelta}}).WantsKeyFrame() {
		t.Fatalf("delta-only info wants a key frame")
	}
	if !(&EncodeInfo{FrameTypes: []FrameType{FrameDelta, FrameKey}}).WantsKeyFrame() {
		t.Fatalf("key entry not honored")
	}
}

func TestFrameTypeString(t *testing.T) {
	if FrameKey.String() != "key" || FrameDelta.String() != "delta" {
		t.Fatalf("frame type strings %q/%q", FrameKey, FrameDelta)
	}
}
