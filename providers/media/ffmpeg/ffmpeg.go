// Package ffmpeg implements the media-encoder capability by shelling out to
// a local ffmpeg binary. The image sequence is rendered as a 1080x1920
// vertical slideshow at a fixed duration per image; when an audio track is
// supplied the slideshow loops and the output stops with the audio.
package ffmpeg

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yond5413/agent-workflow-builder/capability"
	"github.com/yond5413/agent-workflow-builder/internal/utils"
)

// DefaultBinary is the ffmpeg executable looked up on PATH.
const DefaultBinary = "ffmpeg"

// DefaultSecondsPerImage is used when the request leaves the duration unset.
const DefaultSecondsPerImage = 3

// videoFilter scales and crops every frame to a 1080x1920 portrait canvas.
const videoFilter = "scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,fps=30"

var dataURIPrefix = regexp.MustCompile(`^data:[a-z]+/[a-zA-Z0-9.+-]+;base64,`)

// Encoder assembles videos with a local ffmpeg process. It implements
// [capability.MediaEncoder].
type Encoder struct {
	binary string
}

// New creates an Encoder using [DefaultBinary].
func New() *Encoder {
	return &Encoder{binary: DefaultBinary}
}

// WithBinary sets the path of the ffmpeg executable.
func (e *Encoder) WithBinary(binary string) *Encoder {
	e.binary = binary
	return e
}

// Encode implements [capability.MediaEncoder]. Inputs are written to a
// temporary directory that is removed when encoding finishes.
func (e *Encoder) Encode(ctx context.Context, req capability.EncodeRequest) (*capability.EncodeResult, error) {
	if len(req.Images) == 0 {
		return nil, fmt.Errorf("at least one image is required")
	}
	if _, err := exec.LookPath(e.binary); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %w", capability.ErrNotConfigured, err)
	}

	secondsPerImage := req.SecondsPerImage
	if secondsPerImage <= 0 {
		secondsPerImage = DefaultSecondsPerImage
	}

	workDir, err := os.MkdirTemp("", "workflow-video-*")
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	for i, image := range req.Images {
		decoded, err := decodeBase64Payload(image)
		if err != nil {
			return nil, fmt.Errorf("decode image %d: %w", i, err)
		}
		if err := os.WriteFile(filepath.Join(workDir, fmt.Sprintf("img%d.png", i)), decoded, 0o600); err != nil {
			return nil, fmt.Errorf("write image %d: %w", i, err)
		}
	}

	hasAudio := req.Audio != ""
	if hasAudio {
		decoded, err := decodeBase64Payload(req.Audio)
		if err != nil {
			return nil, fmt.Errorf("decode audio: %w", err)
		}
		if err := os.WriteFile(filepath.Join(workDir, "audio.mp3"), decoded, 0o600); err != nil {
			return nil, fmt.Errorf("write audio: %w", err)
		}
	}

	if err := os.WriteFile(filepath.Join(workDir, "input.txt"), []byte(concatList(len(req.Images), secondsPerImage)), 0o600); err != nil {
		return nil, fmt.Errorf("write concat list: %w", err)
	}

	args := encodeArgs(hasAudio)
	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Dir = workDir

	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg encode: %w: %s", err, utils.TruncateString(string(output), 500))
	}

	video, err := os.ReadFile(filepath.Join(workDir, "output.mp4"))
	if err != nil {
		return nil, fmt.Errorf("read encoded video: %w", err)
	}

	return &capability.EncodeResult{
		Video:    video,
		MIMEType: "video/mp4",
	}, nil
}

// concatList renders the ffmpeg concat demuxer input: every image with its
// display duration, plus the last image repeated so the final duration is
// honored.
func concatList(imageCount, secondsPerImage int) string {
	var sb strings.Builder
	for i := 0; i < imageCount; i++ {
		fmt.Fprintf(&sb, "file 'img%d.png'\nduration %d\n", i, secondsPerImage)
	}
	fmt.Fprintf(&sb, "file 'img%d.png'", imageCount-1)
	return sb.String()
}

// encodeArgs builds the ffmpeg argument list. With audio, the slideshow is
// looped indefinitely and -shortest stops the output when the audio ends.
func encodeArgs(hasAudio bool) []string {
	var args []string
	if hasAudio {
		args = append(args, "-stream_loop", "-1")
	}
	args = append(args, "-f", "concat", "-safe", "0", "-i", "input.txt")
	if hasAudio {
		args = append(args, "-i", "audio.mp3")
	}
	args = append(args,
		"-vf", videoFilter,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
	)
	if hasAudio {
		args = append(args, "-c:a", "aac", "-b:a", "192k", "-shortest")
	}
	return append(args, "output.mp4")
}

// decodeBase64Payload accepts either a data URI or a bare base64 string.
func decodeBase64Payload(payload string) ([]byte, error) {
	payload = dataURIPrefix.ReplaceAllString(payload, "")
	return base64.StdEncoding.DecodeString(payload)
}
