// alsaplay renders a generated tone through an ALSA playback device.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	alsapcm "github.com/dmgraves/go-alsapcm"
	"github.com/dmgraves/go-alsapcm/audio"
	"github.com/dmgraves/go-alsapcm/dsp"
	"github.com/dmgraves/go-alsapcm/internal/config"
	"github.com/dmgraves/go-alsapcm/internal/hw"
	"github.com/dmgraves/go-alsapcm/internal/logging"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		list       = flag.Bool("list", false, "List playback devices and exit")
		card       = flag.Int("card", -1, "ALSA card number (overrides config)")
		device     = flag.Int("device", -1, "PCM device number (overrides config)")
		devPath    = flag.String("path", "", "Device node path (overrides config)")
		duration   = flag.Duration("duration", 0, "Stop after this long (0 = until interrupted)")
		freq       = flag.Float64("freq", 440, "Tone frequency in Hz")
		amp        = flag.Float64("amp", 0.5, "Tone amplitude (0..1)")
		wave       = flag.String("wave", "sine", "Waveform: sine or saw")
		gain       = flag.Float64("gain", 1.0, "Output gain multiplier")
		verbose    = flag.BoolP("verbose", "v", false, "Verbose output")
	)
	flag.Parse()

	if *list {
		endpoints, err := hw.ListPlayback()
		if err != nil {
			fmt.Fprintf(os.Stderr, "alsaplay: %v\n", err)
			os.Exit(1)
		}
		if len(endpoints) == 0 {
			fmt.Println("no playback devices found")
			return
		}
		for _, e := range endpoints {
			fmt.Printf("card %d device %d: %s\n", e.Card, e.Device, e.Path)
		}
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "alsaplay: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *card >= 0 {
		cfg.Device.Card = *card
	}
	if *device >= 0 {
		cfg.Device.Device = *device
	}
	if *devPath != "" {
		cfg.Device.Path = *devPath
	}

	// Set up logging
	logConfig := logging.DefaultConfig()
	switch cfg.Log.Level {
	case "debug":
		logConfig.Level = logging.LevelDebug
	case "warn":
		logConfig.Level = logging.LevelWarn
	case "error":
		logConfig.Level = logging.LevelError
	}
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logConfig.Format = cfg.Log.Format
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	format, err := config.ParseFormat(cfg.Device.Format)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	waveform := dsp.WaveSine
	if *wave == "saw" {
		waveform = dsp.WaveSawtooth
	}

	dev, err := hw.Open(hw.Config{
		Card:       cfg.Device.Card,
		Device:     cfg.Device.Device,
		Path:       cfg.Device.Path,
		Format:     format,
		Channels:   cfg.Device.Channels,
		SampleRate: cfg.Device.SampleRate,
		BufferSize: cfg.Device.BufferSize,
		Periods:    cfg.Device.Periods,
		TimeoutMS:  cfg.Device.TimeoutMS,
	}, logger)
	if err != nil {
		logger.Error("failed to open device", "error", err)
		os.Exit(1)
	}
	defer dev.Close()

	var player *alsapcm.Player
	var closeGraph func() error

	switch format {
	case audio.S16LE:
		player, closeGraph, err = buildPlayer[int16](dev, logger, waveform, *freq, *amp*32767, *gain)
	case audio.S32LE:
		player, closeGraph, err = buildPlayer[int32](dev, logger, waveform, *freq, *amp*(1<<31-1), *gain)
	case audio.Float64LE:
		player, closeGraph, err = buildPlayer[float64](dev, logger, waveform, *freq, *amp, *gain)
	default:
		player, closeGraph, err = buildPlayer[float32](dev, logger, waveform, *freq, *amp, *gain)
	}
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer closeGraph()

	// Stop on SIGINT/SIGTERM or after the requested duration
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if *duration > 0 {
			select {
			case <-sigCh:
			case <-time.After(*duration):
			}
		} else {
			<-sigCh
		}
		logger.Info("stopping playback")
		player.Stop()
	}()

	logger.Info("playing", "wave", waveform, "freq", *freq, "device", dev.Path())
	if err := player.Run(); err != nil {
		logger.Error("playback failed", "error", err)
		os.Exit(1)
	}

	snap := player.Metrics().Snapshot()
	logger.Info("playback finished",
		"windows", snap.Windows,
		"frames", snap.FramesCommitted,
		"xruns", snap.XrunRecoveries,
		"suspends", snap.SuspendRecoveries,
		"avg_callback_us", snap.AvgCallbackNs/1000,
	)
}

// buildPlayer assembles the oscillator→gain chain for the device's sample
// type and wraps it in a render callback.
func buildPlayer[T audio.Sample](dev *hw.PCM, logger alsapcm.Logger, wave dsp.Waveform, freq, amp, gain float64) (*alsapcm.Player, func() error, error) {
	chain := dsp.NewChain[T](
		dsp.NewOscillator[T](dsp.OscillatorConfig{
			Waveform:   wave,
			Freq:       freq,
			Amp:        amp,
			SampleRate: dev.SampleRate(),
		}),
		dsp.NewGain[T](gain),
	)

	err := chain.Prepare(dsp.PrepareContext{
		BlockSize:   dev.BufferSize(),
		NumChannels: dev.Channels(),
		SampleRate:  dev.SampleRate(),
		Access:      dev.AccessPattern(),
	})
	if err != nil {
		return nil, nil, err
	}

	callback := func(data *audio.Data) {
		buf := audio.Samples[T](data)
		chain.Process(dsp.ProcessContext[T]{Buffer: buf})
	}

	player, err := alsapcm.NewPlayer(dev, callback, &alsapcm.Options{Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return player, chain.Close, nil
}
