package hw

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmgraves/go-alsapcm/audio"
	"github.com/dmgraves/go-alsapcm/internal/uapi"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.Format = audio.S16LE
	cfg.withDefaults()

	if cfg.Channels != 2 || cfg.SampleRate != 44100 || cfg.BufferSize != 1024 {
		t.Errorf("defaults = %dch %dHz %d frames", cfg.Channels, cfg.SampleRate, cfg.BufferSize)
	}
	if cfg.TimeoutMS != 1000 || cfg.Periods != 4 {
		t.Errorf("defaults timeout=%d periods=%d", cfg.TimeoutMS, cfg.Periods)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("defaulted config failed validation: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Config)
	}{
		{"bad format", func(c *Config) { c.Format = audio.Format(99) }},
		{"negative channels", func(c *Config) { c.Channels = -1 }},
		{"negative rate", func(c *Config) { c.SampleRate = -8000 }},
		{"negative buffer", func(c *Config) { c.BufferSize = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{Format: audio.S16LE}
			cfg.withDefaults()
			tc.mod(&cfg)
			if err := cfg.validate(); err == nil {
				t.Error("validation accepted a bad config")
			}
		})
	}
}

func TestDevicePath(t *testing.T) {
	if got := DevicePath(0, 0); got != "/dev/snd/pcmC0D0p" {
		t.Errorf("DevicePath(0, 0) = %q", got)
	}
	if got := DevicePath(2, 7); got != "/dev/snd/pcmC2D7p" {
		t.Errorf("DevicePath(2, 7) = %q", got)
	}

	cfg := Config{Card: 1, Device: 3, Path: "/dev/snd/pcmC9D9p"}
	if cfg.path() != "/dev/snd/pcmC9D9p" {
		t.Errorf("explicit path not honored: %q", cfg.path())
	}
}

func TestKernelFormat(t *testing.T) {
	cases := []struct {
		format audio.Format
		want   uint32
	}{
		{audio.S16LE, uapi.SNDRV_PCM_FORMAT_S16_LE},
		{audio.S32LE, uapi.SNDRV_PCM_FORMAT_S32_LE},
		{audio.Float32LE, uapi.SNDRV_PCM_FORMAT_FLOAT_LE},
		{audio.Float64LE, uapi.SNDRV_PCM_FORMAT_FLOAT64_LE},
	}
	for _, c := range cases {
		got, err := kernelFormat(c.format)
		if err != nil {
			t.Errorf("kernelFormat(%s) failed: %v", c.format, err)
		}
		if got != c.want {
			t.Errorf("kernelFormat(%s) = %d, want %d", c.format, got, c.want)
		}
	}
	if _, err := kernelFormat(audio.Format(42)); err == nil {
		t.Error("kernelFormat accepted an unknown format")
	}
}

func TestComputeBoundary(t *testing.T) {
	b := computeBoundary(1024)
	if b%1024 != 0 {
		t.Errorf("boundary %d is not a multiple of the buffer size", b)
	}
	if b > math.MaxInt64/2 {
		t.Errorf("boundary %d exceeds the wrap limit", b)
	}
	if b*2 <= math.MaxInt64/2 {
		t.Errorf("boundary %d is not maximal", b)
	}

	// Odd ring sizes still produce multiples of themselves.
	b = computeBoundary(1000)
	if b%1000 != 0 {
		t.Errorf("boundary %d is not a multiple of 1000", b)
	}
}

func TestListPlayback(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"pcmC0D0p", "pcmC0D0c", "pcmC1D0p", "pcmC0D3p", "controlC0", "timer"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	endpoints, err := listPlayback(dir)
	if err != nil {
		t.Fatalf("listPlayback failed: %v", err)
	}

	want := []Endpoint{
		{Path: filepath.Join(dir, "pcmC0D0p"), Card: 0, Device: 0},
		{Path: filepath.Join(dir, "pcmC0D3p"), Card: 0, Device: 3},
		{Path: filepath.Join(dir, "pcmC1D0p"), Card: 1, Device: 0},
	}
	if len(endpoints) != len(want) {
		t.Fatalf("endpoints = %+v, want %+v", endpoints, want)
	}
	for i := range want {
		if endpoints[i] != want[i] {
			t.Errorf("endpoint %d = %+v, want %+v", i, endpoints[i], want[i])
		}
	}
}
