package capture

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"io"
	"log"
	"os/exec"
	"strings"
	"time"
)

// FFmpegSource captures frames from a camera device or stream URL by
// running ffmpeg in image2pipe mode and extracting JPEG frames from its
// stdout.
type FFmpegSource struct {
	device string
	fps    int
	width  int
	height int

	cmd    *exec.Cmd
	stdout io.ReadCloser
	buf    []byte
	chunk  []byte
	seq    uint64
}

// FFmpegSourceConfig holds camera options.
type FFmpegSourceConfig struct {
	Device string // V4L2 device path, rtsp:// or http(s):// URL
	FPS    int
	Width  int
	Height int
}

// NewFFmpegSource creates an unopened source for the given device.
func NewFFmpegSource(config FFmpegSourceConfig) *FFmpegSource {
	fps := config.FPS
	if fps <= 0 {
		fps = 30
	}
	width, height := config.Width, config.Height
	if width <= 0 || height <= 0 {
		width, height = 640, 480
	}

	return &FFmpegSource{
		device: config.Device,
		fps:    fps,
		width:  width,
		height: height,
		buf:    make([]byte, 0, 1024*1024),
		chunk:  make([]byte, 8192),
	}
}

// Open starts the ffmpeg capture process. Failure here is fatal to the run.
func (s *FFmpegSource) Open() error {
	args := s.ffmpegArgs()
	cmd := exec.Command("ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open device %s: %w", s.device, err)
	}

	// Consume stderr silently
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
		}
	}()

	s.cmd = cmd
	s.stdout = stdout

	log.Printf("[Capture] Opened device %s (%dx%d @ %d fps)", s.device, s.width, s.height, s.fps)
	return nil
}

func (s *FFmpegSource) ffmpegArgs() []string {
	if strings.HasPrefix(s.device, "rtsp://") {
		return []string{
			"-rtsp_transport", "tcp",
			"-i", s.device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-r", fmt.Sprintf("%d", s.fps),
			"-q:v", "5",
			"-",
		}
	}
	if strings.HasPrefix(s.device, "http://") || strings.HasPrefix(s.device, "https://") {
		return []string{
			"-i", s.device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-r", fmt.Sprintf("%d", s.fps),
			"-q:v", "5",
			"-",
		}
	}
	// V4L2 device (USB camera)
	return []string{
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", s.width, s.height),
		"-framerate", fmt.Sprintf("%d", s.fps),
		"-i", s.device,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"-",
	}
}

// Read blocks until the next complete JPEG frame arrives and returns it
// decoded. Short reads, decode failures and pipe errors are transient.
func (s *FFmpegSource) Read() (*Frame, error) {
	if s.stdout == nil {
		return nil, fmt.Errorf("source not open: %w", ErrNoFrame)
	}

	for {
		if data := extractJPEGFrame(&s.buf); data != nil {
			img, err := decodeRGBA(data)
			if err != nil {
				return nil, fmt.Errorf("frame decode failed: %w", ErrNoFrame)
			}
			s.seq++
			return &Frame{Image: img, Seq: s.seq, Timestamp: time.Now()}, nil
		}

		n, err := s.stdout.Read(s.chunk)
		if err != nil {
			return nil, fmt.Errorf("capture read failed (%v): %w", err, ErrNoFrame)
		}
		s.buf = append(s.buf, s.chunk[:n]...)
	}
}

// Release stops the capture process and frees the device.
func (s *FFmpegSource) Release() error {
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	s.cmd = nil
	s.stdout = nil
	log.Printf("[Capture] Released device %s", s.device)
	return nil
}

func decodeRGBA(data []byte) (*image.RGBA, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba, nil
}

// extractJPEGFrame extracts a complete JPEG frame from buffer.
func extractJPEGFrame(buffer *[]byte) []byte {
	if len(*buffer) < 4 {
		return nil
	}

	// Find JPEG start marker (FFD8)
	startIdx := -1
	for i := 0; i < len(*buffer)-1; i++ {
		if (*buffer)[i] == 0xFF && (*buffer)[i+1] == 0xD8 {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		return nil
	}

	// Find JPEG end marker (FFD9)
	endIdx := -1
	for i := startIdx + 2; i < len(*buffer)-1; i++ {
		if (*buffer)[i] == 0xFF && (*buffer)[i+1] == 0xD9 {
			endIdx = i + 2
			break
		}
	}
	if endIdx == -1 {
		return nil
	}

	frame := make([]byte, endIdx-startIdx)
	copy(frame, (*buffer)[startIdx:endIdx])
	*buffer = (*buffer)[endIdx:]

	return frame
}

// Ensure FFmpegSource implements FrameSource
var _ FrameSource = (*FFmpegSource)(nil)
