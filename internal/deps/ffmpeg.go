package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"reelpack/internal/encoders"
)

var commandContext = exec.CommandContext

// CodecRequirements lists the ffmpeg and ffprobe binaries.
func CodecRequirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Required for pack, unpack, and preview",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobeBinary,
			Description: "Required to classify images",
		},
	}
}

// AvailableEncoders runs "ffmpeg -encoders" and reports which of the known
// video encoders the build includes.
func AvailableEncoders(ctx context.Context, ffmpegBinary string) (map[encoders.ID]bool, error) {
	cmd := commandContext(ctx, ffmpegBinary, "-hide_banner", "-encoders")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("list ffmpeg encoders: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseEncoderList(out), nil
}

// parseEncoderList reads lines such as " V....D libx265   libx265 H.265 / HEVC".
func parseEncoderList(out []byte) map[encoders.ID]bool {
	known := make(map[string]encoders.ID)
	for _, spec := range encoders.Specs() {
		known[string(spec.ID)] = spec.ID
	}
	found := make(map[encoders.ID]bool, len(known))
	for _, id := range known {
		found[id] = false
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "V") {
			continue
		}
		if id, ok := known[fields[1]]; ok {
			found[id] = true
		}
	}
	return found
}
