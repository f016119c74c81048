package logging

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		level, format string
		wantErr       bool
	}{
		{"info", "console", false},
		{"debug", "json", false},
		{"WARN", "", false},
		{"verbose", "json", true},
		{"info", "xml", true},
	}
	for _, tt := range tests {
		l, err := New(tt.level, tt.format)
		if (err != nil) != tt.wantErr {
			t.Fatalf("New(%q, %q) err = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
		}
		if err == nil {
			if l == nil {
				t.Fatalf("New(%q, %q) returned nil logger", tt.level, tt.format)
			}
			l.Sync()
		}
	}

	l, _ := New("warn", "json")
	if l.Core().Enabled(-1) {
		t.Fatal("debug should be disabled at warn level")
	}
}
