package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "ffmpeg")

// Binary names, overridable from configuration.
var (
	FFmpegBin  = "ffmpeg"
	FFprobeBin = "ffprobe"
)

// run executes ffmpeg with args, feeding -progress output to onProgress as a
// fraction of total seconds. The tail of stderr is folded into the error.
func run(ctx context.Context, args []string, total float64, onProgress func(float64)) error {
	cmd := exec.CommandContext(ctx, FFmpegBin, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	logger.WithField("args", strings.Join(args, " ")).Debug("running ffmpeg")

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	parseProgress(stdout, total, onProgress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// parseProgress reads ffmpeg's key=value progress stream. out_time_us and
// out_time_ms both carry microseconds.
func parseProgress(r io.Reader, total float64, onProgress func(float64)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || onProgress == nil {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 || total <= 0 {
				continue
			}
			frac := float64(us) / 1e6 / total
			if frac > 1 {
				frac = 1
			}
			onProgress(frac)
		case "progress":
			if value == "end" {
				onProgress(1)
			}
		}
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
