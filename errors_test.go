package sfoauth

import "testing"

func TestProtocolErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *ProtocolError
		want string
	}{
		{
			name: "code with description",
			err:  &ProtocolError{Code: "invalid_grant", Description: "expired code", Status: 400},
			want: "invalid_grant (expired code)",
		},
		{
			name: "code only",
			err:  &ProtocolError{Code: "server_error", Status: 500},
			want: "server_error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMissingParameterErrorFormat(t *testing.T) {
	err := &MissingParameterError{Name: "redirectUri"}
	want := "Missing required string parameter: redirectUri"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
