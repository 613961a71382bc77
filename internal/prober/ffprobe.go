package prober

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Config configures the ffprobe adapter.
type Config struct {
	// Binary is the ffprobe executable name or path.
	Binary string
	// Timeout bounds a single probe.
	Timeout time.Duration
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{Binary: "ffprobe", Timeout: 30 * time.Second}
}

// FFProbe extracts metadata by running ffprobe.
type FFProbe struct {
	config Config
}

// NewFFProbe creates an ffprobe adapter.
func NewFFProbe(config Config) *FFProbe {
	if config.Binary == "" {
		config.Binary = "ffprobe"
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &FFProbe{config: config}
}

// Check verifies the binary is installed and returns its version line.
func (p *FFProbe) Check(ctx context.Context) (string, error) {
	path, err := exec.LookPath(p.config.Binary)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", p.config.Binary)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", p.config.Binary, err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// Probe runs ffprobe on path. Any failure yields (nil, false).
func (p *FFProbe) Probe(ctx context.Context, path string) (*Metadata, bool) {
	start := time.Now()
	metrics.ProbesInFlight.Inc()
	defer metrics.ProbesInFlight.Dec()

	meta, err := p.run(ctx, path)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProbesTotal.WithLabelValues("failure").Inc()
		if errors.Is(err, exec.ErrNotFound) {
			logging.Warn("Metadata probe unavailable: %v", err)
		} else {
			logging.Debug("Metadata probe failed for %s: %v", path, err)
		}
		return nil, false
	}

	metrics.ProbesTotal.WithLabelValues("success").Inc()
	return meta, true
}

func (p *FFProbe) run(ctx context.Context, path string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.config.Binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe timed out after %v: %w", p.config.Timeout, ctx.Err())
		}
		return nil, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	meta, err := Parse(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	if meta.Size == 0 {
		if info, statErr := os.Stat(path); statErr == nil {
			meta.Size = info.Size()
		}
	}
	return meta, nil
}

// lenient accepts a JSON number or string and keeps its text. Anything
// else decodes to the empty value instead of failing the document.
type lenient string

func (l *lenient) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	} else if s == "null" || strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		s = ""
	}
	*l = lenient(strings.TrimSpace(s))
	return nil
}

func (l lenient) int64() int64 {
	if v, err := strconv.ParseInt(string(l), 10, 64); err == nil {
		return v
	}
	return int64(l.float64())
}

func (l lenient) float64() float64 {
	v, err := strconv.ParseFloat(string(l), 64)
	if err != nil {
		return 0
	}
	return finite(v)
}

// finite maps NaN and the infinities to zero. The metadata columns are
// NOT NULL and SQLite binds NaN as NULL.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ffprobeOutput matches ffprobe JSON output structure.
type ffprobeOutput struct {
	Format struct {
		Duration lenient `json:"duration"`
		Size     lenient `json:"size"`
		BitRate  lenient `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    lenient `json:"codec_type"`
		Width        lenient `json:"width"`
		Height       lenient `json:"height"`
		RFrameRate   lenient `json:"r_frame_rate"`
		AvgFrameRate lenient `json:"avg_frame_rate"`
		Duration     lenient `json:"duration"`
		BitRate      lenient `json:"bit_rate"`
	} `json:"streams"`
}

// Parse extracts Metadata from ffprobe JSON. Missing or malformed fields
// are left at zero; only a document that is not JSON at all is an error.
func Parse(data []byte) (*Metadata, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("ffprobe: failed to parse output: %w", err)
	}

	meta := &Metadata{
		Size:     out.Format.Size.int64(),
		Duration: out.Format.Duration.float64(),
		Bitrate:  out.Format.BitRate.int64(),
	}

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		meta.Width = int(s.Width.int64())
		meta.Height = int(s.Height.int64())
		meta.Framerate = parseFrameRate(string(s.RFrameRate))
		if meta.Framerate == 0 {
			meta.Framerate = parseFrameRate(string(s.AvgFrameRate))
		}
		if meta.Duration == 0 {
			meta.Duration = s.Duration.float64()
		}
		if meta.Bitrate == 0 {
			meta.Bitrate = s.BitRate.int64()
		}
		break
	}

	return meta, nil
}

// parseFrameRate parses "30000/1001", "25/1" or a plain number.
func parseFrameRate(rate string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(rate), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return finite(n)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return finite(n / d)
}
