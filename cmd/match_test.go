package cmd

import "testing"

func TestFormatIDs(t *testing.T) {
	tests := []struct {
		ids  []int
		want string
	}{
		{nil, "-"},
		{[]int{1234}, "1234"},
		{[]int{1234, 4321}, "1234+1"},
		{[]int{1234, 4321, 5678}, "1234+2"},
	}
	for _, tt := range tests {
		if got := formatIDs(tt.ids); got != tt.want {
			t.Errorf("formatIDs(%v) = %q, want %q", tt.ids, got, tt.want)
		}
	}
}
