/*
 * This file is part of Voicebridge (https://github.com/AlexandruDanCroitoriu/voicebridge).
 * Copyright (C) 2025 Alexandru Dan Croitoriu
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"os"
)

// WhisperSampleRate is the sample rate the inference engine expects.
// Off-rate input is accepted as-is and only logged; no resampling happens here.
const WhisperSampleRate = 16000

// FormatError indicates a malformed WAV container.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid WAV file: %s", e.Reason)
}

// UnsupportedFormatError indicates a WAV file whose encoding the pipeline
// cannot consume (anything other than 16-bit PCM).
type UnsupportedFormatError struct {
	BitsPerSample uint16
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported bits per sample: %d (only 16-bit PCM is supported)", e.BitsPerSample)
}

// PCM holds decoded mono audio normalized to [-1.0, 1.0].
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int // channel count of the source file before downmixing
}

// Duration returns the audio length in seconds.
func (p *PCM) Duration() float64 {
	if p.SampleRate == 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate)
}

// wavFormat holds the fields read from the fmt chunk
type wavFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// DecodeFile reads a WAV file from disk and decodes it into normalized mono samples.
func DecodeFile(path string) (*PCM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open audio file %s: %w", path, err)
	}
	return Decode(data)
}

// Decode parses a RIFF/WAVE container and converts its 16-bit PCM payload to
// normalized float32 mono samples. Multi-channel input is downmixed by
// averaging all channels per frame.
func Decode(data []byte) (*PCM, error) {
	if len(data) < 12 {
		return nil, &FormatError{Reason: fmt.Sprintf("container too short (%d bytes)", len(data))}
	}

	if string(data[0:4]) != "RIFF" {
		return nil, &FormatError{Reason: "missing RIFF header"}
	}
	if string(data[8:12]) != "WAVE" {
		return nil, &FormatError{Reason: "missing WAVE signature"}
	}

	format, dataChunk, err := scanChunks(data[12:])
	if err != nil {
		return nil, err
	}

	if format.BitsPerSample != 16 {
		return nil, &UnsupportedFormatError{BitsPerSample: format.BitsPerSample}
	}
	if format.NumChannels == 0 {
		return nil, &FormatError{Reason: "zero channel count"}
	}

	if format.SampleRate != WhisperSampleRate {
		log.Printf("ℹ️  WAV sample rate is %d Hz, engine expects %d Hz; proceeding without resampling",
			format.SampleRate, WhisperSampleRate)
	}

	channels := int(format.NumChannels)
	totalSamples := len(dataChunk) / 2
	frames := totalSamples / channels

	raw := make([]int16, totalSamples)
	if err := binary.Read(bytes.NewReader(dataChunk[:totalSamples*2]), binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("failed to read audio samples: %w", err)
	}

	samples := make([]float32, frames)
	if channels == 1 {
		for i, s := range raw {
			samples[i] = float32(s) / 32768.0
		}
	} else {
		for i := 0; i < frames; i++ {
			var sum float32
			for ch := 0; ch < channels; ch++ {
				sum += float32(raw[i*channels+ch])
			}
			samples[i] = (sum / float32(channels)) / 32768.0
		}
	}

	return &PCM{
		Samples:    samples,
		SampleRate: int(format.SampleRate),
		Channels:   channels,
	}, nil
}

// scanChunks walks the chunk list after the RIFF header, returning the parsed
// fmt chunk and the raw data chunk payload. Unrecognized chunks are skipped by
// their declared size.
func scanChunks(chunks []byte) (*wavFormat, []byte, error) {
	var format *wavFormat
	var dataChunk []byte

	offset := 0
	for offset+8 <= len(chunks) {
		chunkID := string(chunks[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(chunks[offset+4 : offset+8]))
		body := chunks[offset+8:]
		if chunkSize > len(body) {
			// Declared size runs past end-of-file; clamp so a truncated
			// trailing chunk doesn't take the whole file down with it.
			chunkSize = len(body)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, nil, &FormatError{Reason: fmt.Sprintf("fmt chunk too short (%d bytes)", chunkSize)}
			}
			format = &wavFormat{
				AudioFormat:   binary.LittleEndian.Uint16(body[0:2]),
				NumChannels:   binary.LittleEndian.Uint16(body[2:4]),
				SampleRate:    binary.LittleEndian.Uint32(body[4:8]),
				ByteRate:      binary.LittleEndian.Uint32(body[8:12]),
				BlockAlign:    binary.LittleEndian.Uint16(body[12:14]),
				BitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
			}
		case "data":
			dataChunk = body[:chunkSize]
		}

		if format != nil && dataChunk != nil {
			break
		}

		// Chunks are word-aligned; odd sizes carry a pad byte.
		offset += 8 + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if format == nil {
		return nil, nil, &FormatError{Reason: "missing fmt chunk"}
	}
	if dataChunk == nil {
		return nil, nil, &FormatError{Reason: "no data chunk found"}
	}

	return format, dataChunk, nil
}

// Encode writes mono 16-bit PCM samples as a WAV file.
func Encode(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, numChannels)
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate)*uint32(numChannels)*uint32(bitsPerSample)/8)
	_ = binary.Write(buf, binary.LittleEndian, numChannels*bitsPerSample/8)
	_ = binary.Write(buf, binary.LittleEndian, bitsPerSample)

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}
