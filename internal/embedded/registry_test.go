package embedded_test

import (
	"testing"

	"github.com/FocuswithJustin/annotconv/core/plugins"
	"github.com/FocuswithJustin/annotconv/internal/embedded"
)

// TestCodecRegistrations verifies that importing the embedded package
// triggers every format's init() and registers its codec.
func TestCodecRegistrations(t *testing.T) {
	tests := []struct {
		name     string
		canRead  bool
		canWrite bool
	}{
		{"conll-coref", true, true},
		{"conllu", true, false},
		{"json", true, true},
		{"text", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := plugins.GetCodec(tt.name)
			if err != nil {
				t.Fatalf("codec %q not registered: %v", tt.name, err)
			}
			if c.CanRead() != tt.canRead || c.CanWrite() != tt.canWrite {
				t.Errorf("codec %q read=%v write=%v", tt.name, c.CanRead(), c.CanWrite())
			}
		})
	}

	if !embedded.IsInitialized() {
		t.Error("IsInitialized() returned false, expected true")
	}
	if got := embedded.CodecCount(); got != len(tests) {
		t.Errorf("CodecCount() = %d, want %d", got, len(tests))
	}
}
