package ffmpeg

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/noelforte/mkhls/pkg/errors"
	"github.com/noelforte/mkhls/pkg/logger"
	"github.com/noelforte/mkhls/pkg/progress"
	"github.com/noelforte/mkhls/pkg/timestamp"
)

// stderr lines matching any of these are treated as fatal immediately
// instead of waiting for the process to exit.
var fatalPatterns = []string{
	"already exists",
}

// stderrTailLines bounds how much stderr is kept for the failure message.
const stderrTailLines = 20

// Driver executes a built ffmpeg command and owns the child process for its
// lifetime. Progress is parsed from the machine-readable key=value stream on
// stdout and reported as a percentage of the total duration; stderr lines
// are relayed as warnings.
type Driver struct {
	Binary   string
	Logger   logger.Logger
	Reporter progress.Reporter
}

// Check verifies that the configured binary is runnable.
func (d *Driver) Check(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, d.binary(), "-version")
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, errors.TranscodeError,
			"ffmpeg is not available at "+d.binary(), errors.ErrFFmpegMissing)
	}
	return nil
}

// Run launches ffmpeg with args and blocks until it exits. It succeeds only
// on a zero exit code; a recognized fatal stderr pattern kills the child and
// fails immediately.
func (d *Driver) Run(ctx context.Context, args []string, totalDurationSeconds float64) error {
	log := d.Logger
	if log == nil {
		log = logger.NewLogger()
	}

	cmd := exec.CommandContext(ctx, d.binary(), args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, errors.TranscodeError, "Failed to open stdout pipe", errors.ErrFFmpegStart)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, errors.TranscodeError, "Failed to open stderr pipe", errors.ErrFFmpegStart)
	}

	log.Debug("Executing ffmpeg", "ffmpeg", map[string]interface{}{
		"command": d.binary() + " " + strings.Join(args, " "),
	})

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, errors.TranscodeError, "Failed to start ffmpeg", errors.ErrFFmpegStart)
	}

	if d.Reporter != nil && totalDurationSeconds > 0 {
		d.Reporter.Start(100)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		tail     []string
		fatalErr error
	)

	wg.Add(2)

	// Progress stream: key=value lines, out_time advancing with the encode.
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			seconds, ok := parseProgressLine(scanner.Text())
			if !ok {
				continue
			}
			if d.Reporter != nil && totalDurationSeconds > 0 {
				pct := seconds / totalDurationSeconds * 100
				if pct > 100 {
					pct = 100
				}
				d.Reporter.Update(int64(pct), "transcoding", "Encoding outputs")
			}
		}
	}()

	// Error stream: warnings, unless a known-fatal pattern shows up.
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}

			log.Warn(line, "ffmpeg", nil)

			mu.Lock()
			tail = append(tail, line)
			if len(tail) > stderrTailLines {
				tail = tail[1:]
			}
			isFatal := fatalErr == nil && matchesFatal(line)
			if isFatal {
				fatalErr = errors.New(errors.TranscodeError,
					"ffmpeg reported a fatal condition", line, errors.ErrFFmpegFatal)
			}
			mu.Unlock()

			if isFatal && cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		}
	}()

	wg.Wait()
	waitErr := cmd.Wait()

	mu.Lock()
	defer mu.Unlock()

	if fatalErr != nil {
		return fatalErr
	}
	if waitErr != nil {
		return errors.Wrap(waitErr, errors.TranscodeError,
			"ffmpeg exited with an error: "+strings.Join(tail, "\n"), errors.ErrFFmpegExit)
	}

	if d.Reporter != nil && totalDurationSeconds > 0 {
		d.Reporter.Complete()
	}
	return nil
}

func (d *Driver) binary() string {
	if d.Binary == "" {
		return "ffmpeg"
	}
	return d.Binary
}

// parseProgressLine extracts the encoded position in seconds from one
// key=value progress line, preferring the microsecond counter and falling
// back to the textual out_time form.
func parseProgressLine(line string) (float64, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return 0, false
	}

	switch key {
	case "out_time_us", "out_time_ms":
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		return float64(us) / 1e6, true
	case "out_time":
		seconds, err := timestamp.Parse(value)
		if err != nil || seconds < 0 {
			return 0, false
		}
		return seconds, true
	}
	return 0, false
}

func matchesFatal(line string) bool {
	for _, p := range fatalPatterns {
		if strings.Contains(line, p) {
			return true
		}
	}
	return false
}
