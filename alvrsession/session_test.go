package alvrsession

import "testing"

func TestEventString(t *testing.T) {
	tests := []struct {
		e    Event
		want string
	}{
		{EventClientConnected, "ClientConnected"},
		{EventClientDisconnected, "ClientDisconnected"},
		{EventRequestIDR, "RequestIDR"},
		{Event(99), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.e.String(); got != tc.want {
			t.Errorf("Event(%d).String() = %q, want %q", tc.e, got, tc.want)
		}
	}
}
