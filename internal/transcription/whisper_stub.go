//go:build !whisper

package transcription

import (
	"fmt"
	"os"
)

// whisperStub stands in for the whisper.cpp engine when CGO builds are
// disabled. Every transcription yields an error, which the pipeline converts
// to an empty-string result.
type whisperStub struct {
	modelPath string
}

// newWhisperTranscriber creates a stub engine when whisper is disabled. It
// still requires the model file so the initialization contract stays the same
// across builds.
func newWhisperTranscriber(cfg Config) (Transcriber, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}
	return &whisperStub{modelPath: cfg.ModelPath}, nil
}

func (wt *whisperStub) Transcribe(samples []float32) (string, error) {
	return "", fmt.Errorf("whisper transcription disabled (build with -tags whisper to enable)")
}

func (wt *whisperStub) Close() error {
	return nil
}
