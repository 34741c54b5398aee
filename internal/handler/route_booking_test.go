package handler

import "testing"

func TestParseSlotAssignments(t *testing.T) {
	got, err := parseSlotAssignments(map[string]uint64{"0": 5, "1": 6})
	if err != nil {
		t.Fatalf("parseSlotAssignments: %v", err)
	}
	if got[0] != 5 || got[1] != 6 {
		t.Errorf("assignments = %v, want {0:5 1:6}", got)
	}

	for _, key := range []string{"-1", "first", ""} {
		if _, err := parseSlotAssignments(map[string]uint64{key: 5}); err == nil {
			t.Errorf("key %q: expected an error", key)
		}
	}
}
