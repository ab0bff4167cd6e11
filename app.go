package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/engrepeat/internal/audio"
	"github.com/dgnsrekt/engrepeat/internal/config"
	"github.com/dgnsrekt/engrepeat/internal/gemini"
	"github.com/dgnsrekt/engrepeat/internal/lesson"
	"github.com/dgnsrekt/engrepeat/internal/metrics"
	"github.com/dgnsrekt/engrepeat/internal/practice"
	"github.com/dgnsrekt/engrepeat/internal/speech"
)

// app holds the services every command shares.
type app struct {
	client     *gemini.Client
	builder    *lesson.Builder
	acquirer   *speech.Acquirer
	controller *practice.Controller
	history    *lesson.History
	metrics    *metrics.Metrics

	stopMetrics context.CancelFunc
	metricsDone chan error
}

// newApp wires the provider client, speech acquisition, audio output and
// practice controller from cfg. History is nil when disabled.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	client, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:            cfg.Gemini.APIKey,
		TextModel:         cfg.Gemini.TextModel,
		SpeechModel:       cfg.Gemini.SpeechModel,
		Voice:             cfg.Gemini.Voice,
		BaseURL:           cfg.Gemini.BaseURL,
		RequestsPerMinute: cfg.Gemini.RequestsPerMinute,
	})
	if err != nil {
		if errors.Is(err, gemini.ErrMissingAPIKey) {
			return nil, fmt.Errorf("%w: set GEMINI_API_KEY or gemini.api_key in %s", err, configFile)
		}
		return nil, err
	}

	ctxType := audio.ContextAuto
	if cfg.Audio.Mock {
		ctxType = audio.ContextMock
	}
	audio.Configure(ctxType, audio.Options{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
	})
	out := audio.NewOutput()
	out.SetVolume(cfg.Audio.Volume)

	acquirer := speech.NewAcquirer(client, cfg.Practice.AcquireTimeout)
	controller := practice.NewController(acquirer, out, practice.Config{
		RepeatLimit: cfg.Practice.RepeatLimit,
		RepeatDelay: cfg.Practice.RepeatDelay,
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
	})

	m := metrics.New()
	client.SetObserver(m)
	acquirer.SetObserver(m)
	controller.SetObserver(m)

	a := &app{
		client:     client,
		builder:    lesson.NewBuilder(client),
		acquirer:   acquirer,
		controller: controller,
		metrics:    m,
	}

	if cfg.History.Enabled {
		h, err := lesson.OpenHistory(cfg.History.Dir, cfg.History.MaxLessons, cfg.History.Compression)
		if err != nil {
			// Practice works without history.
			log.Warn("History unavailable", "dir", cfg.History.Dir, "error", err)
		} else {
			a.history = h
		}
	}

	if cfg.Metrics.Listen != "" {
		mctx, cancel := context.WithCancel(context.Background())
		a.stopMetrics = cancel
		a.metricsDone = make(chan error, 1)
		go func() {
			err := m.Serve(mctx, cfg.Metrics.Listen)
			if err != nil {
				log.Error("Metrics server stopped", "addr", cfg.Metrics.Listen, "error", err)
			}
			a.metricsDone <- err
		}()
	}

	return a, nil
}

// Close stops practice, flushes history and releases the audio device.
func (a *app) Close() error {
	errs := []error{a.controller.Close()}
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if a.stopMetrics != nil {
		a.stopMetrics()
		errs = append(errs, <-a.metricsDone)
	}
	audio.ResetGlobalContext()
	return errors.Join(errs...)
}
