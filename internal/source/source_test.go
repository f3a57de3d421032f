package source

import (
	"bytes"
	"testing"
)

func TestFormatCommand(t *testing.T) {
	tests := []struct {
		cmd  string
		want string
	}{
		// Checksum of the canonical RMC example payload.
		{"GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W", "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A\r\n"},
		{"PQTMCFGUART,W,460800", "$PQTMCFGUART,W,460800*15\r\n"},
	}
	for _, tt := range tests {
		if got := FormatCommand(tt.cmd); !bytes.Equal(got, []byte(tt.want)) {
			t.Errorf("FormatCommand(%q) = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}
