package tensor

import (
	"errors"
	"testing"

	"github.com/vidreg/vidreg/internal/verrors"
)

func TestParseBackend(t *testing.T) {
	cases := map[string]Backend{"raw": BackendRaw, "numpy": BackendNumpy, "pytorch": BackendPyTorch}
	for s, want := range cases {
		got, err := ParseBackend(s)
		if err != nil {
			t.Fatalf("ParseBackend(%q): %v", s, err)
		}
		if got != want {
			t.Errorf("ParseBackend(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestParseBackendRejectsUnknown(t *testing.T) {
	_, err := ParseBackend("tensorflow")
	if !errors.Is(err, verrors.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestGoMLXBridgeRaw(t *testing.T) {
	buf := PixelBuffer{N: 2, W: 3, H: 4, Data: make([]byte, 2*3*4*3)}
	out, err := (GoMLXBridge{}).Convert(BackendRaw, buf)
	if err != nil {
		t.Fatal(err)
	}
	pix, ok := out.([]byte)
	if !ok {
		t.Fatalf("expected []byte, got %T", out)
	}
	if len(pix) != len(buf.Data) {
		t.Errorf("length mismatch: got %d, want %d", len(pix), len(buf.Data))
	}
}
