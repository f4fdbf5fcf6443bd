package capture

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"testing"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestExtractJPEGFrame(t *testing.T) {
	full := encodeJPEG(t, 32, 24)

	tests := []struct {
		name      string
		buffer    []byte
		wantFrame bool
		wantRest  int
	}{
		{
			name:      "empty buffer",
			buffer:    nil,
			wantFrame: false,
		},
		{
			name:      "partial frame without end marker",
			buffer:    full[:len(full)-2],
			wantFrame: false,
			wantRest:  len(full) - 2,
		},
		{
			name:      "complete frame",
			buffer:    full,
			wantFrame: true,
			wantRest:  0,
		},
		{
			name:      "frame with leading garbage",
			buffer:    append([]byte{0x00, 0x01, 0x02}, full...),
			wantFrame: true,
			wantRest:  0,
		},
		{
			name:      "frame with trailing partial frame",
			buffer:    append(append([]byte{}, full...), full[:10]...),
			wantFrame: true,
			wantRest:  10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buffer := append([]byte{}, tt.buffer...)
			frame := extractJPEGFrame(&buffer)

			if (frame != nil) != tt.wantFrame {
				t.Fatalf("frame extracted = %v, want %v", frame != nil, tt.wantFrame)
			}
			if len(buffer) != tt.wantRest {
				t.Errorf("remaining buffer = %d bytes, want %d", len(buffer), tt.wantRest)
			}
			if frame != nil {
				if frame[0] != 0xFF || frame[1] != 0xD8 {
					t.Error("extracted frame does not start with a JPEG start marker")
				}
				if frame[len(frame)-2] != 0xFF || frame[len(frame)-1] != 0xD9 {
					t.Error("extracted frame does not end with a JPEG end marker")
				}
			}
		})
	}
}

func TestExtractJPEGFrameSequential(t *testing.T) {
	a := encodeJPEG(t, 16, 16)
	b := encodeJPEG(t, 32, 16)
	buffer := append(append([]byte{}, a...), b...)

	first := extractJPEGFrame(&buffer)
	if first == nil {
		t.Fatal("first frame not extracted")
	}
	second := extractJPEGFrame(&buffer)
	if second == nil {
		t.Fatal("second frame not extracted")
	}
	if len(buffer) != 0 {
		t.Errorf("remaining buffer = %d bytes, want 0", len(buffer))
	}
}

func TestDecodeRGBA(t *testing.T) {
	img, err := decodeRGBA(encodeJPEG(t, 64, 48))
	if err != nil {
		t.Fatalf("decodeRGBA() error: %v", err)
	}
	if got := img.Bounds(); got.Dx() != 64 || got.Dy() != 48 {
		t.Errorf("bounds = %v, want 64x48", got)
	}

	if _, err := decodeRGBA([]byte{0xFF, 0xD8, 0x00, 0xFF, 0xD9}); err == nil {
		t.Error("decodeRGBA() of invalid data = nil, want error")
	}
}

func TestReadBeforeOpenIsTransient(t *testing.T) {
	source := NewFFmpegSource(FFmpegSourceConfig{Device: "/dev/video9"})

	_, err := source.Read()
	if !errors.Is(err, ErrNoFrame) {
		t.Fatalf("Read() before Open() = %v, want ErrNoFrame", err)
	}
}

func TestReleaseWithoutOpen(t *testing.T) {
	source := NewFFmpegSource(FFmpegSourceConfig{Device: "/dev/video9"})
	if err := source.Release(); err != nil {
		t.Errorf("Release() without Open() = %v, want nil", err)
	}
}
