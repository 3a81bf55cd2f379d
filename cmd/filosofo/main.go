// Filósofo is a philosophy tutor for the terminal.
//
// Usage:
//
//	filosofo [-verbose] [-quiet] [-voice off|whisper|deepgram] [-speak]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"

	"github.com/hammamikhairi/filosofo/internal/chat"
	"github.com/hammamikhairi/filosofo/internal/command"
	"github.com/hammamikhairi/filosofo/internal/config"
	"github.com/hammamikhairi/filosofo/internal/display"
	"github.com/hammamikhairi/filosofo/internal/domain"
	"github.com/hammamikhairi/filosofo/internal/gpt"
	"github.com/hammamikhairi/filosofo/internal/history"
	"github.com/hammamikhairi/filosofo/internal/input"
	"github.com/hammamikhairi/filosofo/internal/logger"
	"github.com/hammamikhairi/filosofo/internal/speech"
	"github.com/hammamikhairi/filosofo/internal/voice"
)

func main() {
	env, err := config.SystemEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(os.Args[1:], env)
	if errors.Is(err, flag.ErrHelp) {
		config.Usage(os.Stdout)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		config.Usage(os.Stderr)
		os.Exit(2)
	}

	// Logs go to a file by default so the UI stays clean.
	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" && cfg.LogFile != "stderr" {
		if dir := filepath.Dir(cfg.LogFile); dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", cfg.LogFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Third-party libraries (the whisper transcriber) log through the
	// standard log package.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(cfg.LogLevel(), logOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Model client and conversation.
	client := gpt.NewClient(cfg.APIKey, log,
		gpt.WithModel(cfg.Model),
		gpt.WithBaseURL(cfg.BaseURL),
	)
	newSession := func() (domain.ModelSession, error) {
		if cfg.APIKey == "" {
			return nil, domain.ErrMissingCredential
		}
		return client.NewSession(gpt.SystemInstruction), nil
	}
	if cfg.APIKey == "" {
		log.Warn("%s is not set; the chat cannot start", config.EnvAPIKey)
	}

	store := history.NewStore(log)

	var chatOpts []chat.Option
	var displayOpts []display.Option
	if reader := buildSpeech(ctx, cfg, log); reader != nil {
		chatOpts = append(chatOpts, chat.WithSpeaker(reader))
		displayOpts = append(displayOpts, display.WithSpeaker(reader))
	}
	ctrl := chat.New(newSession, store, log, chatOpts...)

	// Voice input.
	capture := voice.NewCapture(buildRecognizer(cfg, log), log)
	defer capture.Close()

	composer := input.New(capture, ctrl.Loading, log, input.WithCorrector(client))

	ui := display.NewUI(ctrl, composer, command.NewParser(log), log, displayOpts...)
	store.Subscribe(ui.Transcript)
	ctrl.OnStateChange(ui.ChatState)
	composer.OnChange(ui.InputState)

	log.Info("starting (model=%s, voice=%s, speech=%v)", client.Model(), cfg.Voice, cfg.SpeechEnabled())

	// Bubble Tea owns the terminal and blocks until quit.
	if err := ui.Run(ctx); err != nil {
		log.Error("display: %v", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	cancel()
}

// buildSpeech returns the read-aloud pipeline, or nil when it is off or
// cannot work.
func buildSpeech(ctx context.Context, cfg config.Config, log *logger.Logger) *speech.Reader {
	if !cfg.Speak {
		return nil
	}
	if !cfg.SpeechEnabled() {
		log.Info("TTS disabled: set %s and %s to enable", config.EnvAzureSpeechKey, config.EnvAzureSpeechRegion)
		return nil
	}

	tts := speech.NewAzureClient(cfg.AzureKey, cfg.AzureRegion, log, speech.WithVoice(cfg.AzureVoice))
	player, err := speech.NewPlayer(log)
	if err != nil {
		log.Error("audio player init failed, speech disabled: %v", err)
		return nil
	}
	cache := speech.NewAudioCache(tts.Voice(), cfg.CacheDir, cfg.DiskCache, 0, log)
	reader := speech.NewReader(tts, player, log, speech.WithCache(cache))
	reader.Start(ctx)
	log.Info("TTS enabled (voice=%s, region=%s)", tts.Voice(), cfg.AzureRegion)
	return reader
}

// buildRecognizer picks the speech backend. A nil result leaves dictation
// unsupported.
func buildRecognizer(cfg config.Config, log *logger.Logger) voice.Recognizer {
	switch cfg.Voice {
	case config.VoiceWhisper:
		if _, err := os.Stat(cfg.WhisperModel); err != nil {
			log.Error("whisper model not found at %s, voice input disabled", cfg.WhisperModel)
			return nil
		}
		w := voice.NewWhisper(cfg.WhisperBin, cfg.WhisperModel, log,
			voice.WithChunkDuration(cfg.RecordChunk()),
		)
		if !w.Available() {
			log.Error("whisper binary %s not found, voice input disabled", cfg.WhisperBin)
			return nil
		}
		log.Info("voice input enabled (whisper, model=%s, chunk=%ds)", cfg.WhisperModel, cfg.RecordSecs)
		return w

	case config.VoiceDeepgram:
		if cfg.DeepgramKey == "" {
			log.Error("%s is not set, voice input disabled", config.EnvDeepgramKey)
			return nil
		}
		log.Info("voice input enabled (deepgram)")
		return voice.NewDeepgram(cfg.DeepgramKey, log, voice.WithAudioSource(cfg.AudioSource))
	}
	return nil
}
