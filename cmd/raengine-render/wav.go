package main

import (
	"fmt"
	"os"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// readMonoWAV decodes an entire WAV file to normalized mono float32
// samples, downmixing if the file is multi-channel.
func readMonoWAV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", path, err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	maxVal := float32(int(1) << (uint(buf.SourceBitDepth) - 1))
	if maxVal <= 0 {
		maxVal = 32768
	}

	frames := len(buf.Data) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c]) / maxVal
		}
		mono[i] = sum / float32(channels)
	}
	return mono, nil
}

// writeStereoWAV writes left/right sample slices as an interleaved
// 16-bit PCM stereo WAV file (grounded on CWBudde-algo-piano's
// cmd/piano-render and cmd/ir-synth, which write output the same way).
func writeStereoWAV(path string, left, right []float32, sampleRate int) error {
	if len(left) != len(right) {
		return fmt.Errorf("left/right length mismatch: %d vs %d", len(left), len(right))
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	defer enc.Close()

	data := make([]float32, len(left)*2)
	for i := range left {
		data[i*2] = left[i]
		data[i*2+1] = right[i]
	}
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: 2,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	return enc.Write(buf)
}
