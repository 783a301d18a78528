package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
	"gonum.org/v1/gonum/mat"

	synchrony "github.com/tphakala/go-synchrony"
)

const (
	// Sample format constants
	bitsPerSample16 = 16
	bitsPerSample24 = 24
	bitsPerSample32 = 32

	// Conversion constants
	maxInt16 = 32767.0
	maxInt24 = 8388607.0
	maxInt32 = 2147483647.0

	// openViBE CSV layout
	openViBEDelimiter = ';'
	openViBETimeCol   = "Time (s)"
	openViBERateCol   = "Sampling Rate"
)

// loadRecording reads a recording, choosing the format by file extension.
// rate is only used for plain text matrices, which carry no sample rate.
func loadRecording(path string, rate float64) (*synchrony.Recording, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return loadWAV(path)
	case ".csv":
		return loadOpenViBE(path)
	default:
		if !(rate > 0) {
			return nil, fmt.Errorf("%s: plain text recordings need --rate", path)
		}
		return loadText(path, rate)
	}
}

// loadWAV reads a PCM WAV file with one channel per recording channel,
// normalised to [-1, 1].
func loadWAV(path string) (*synchrony.Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}

	maxVal, err := getMaxValue(int(decoder.BitDepth))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	channels := buf.Format.NumChannels
	if channels < 1 || len(buf.Data) < channels {
		return nil, fmt.Errorf("no audio data in %s", path)
	}

	frames := len(buf.Data) / channels
	data := mat.NewDense(channels, frames, nil)
	deinterleaveInto(buf.Data[:frames*channels], data, 1/maxVal)
	return synchrony.NewRecording(data, float64(buf.Format.SampleRate), nil)
}

// deinterleaveInto converts interleaved int samples into the rows of dst.
func deinterleaveInto(src []int, dst *mat.Dense, invMaxVal float64) {
	channels, frames := dst.Dims()
	for ch := range channels {
		row := dst.RawRowView(ch)
		for i := range frames {
			row[i] = float64(src[i*channels+ch]) * invMaxVal
		}
	}
}

// getMaxValue returns the maximum sample value for the given bit depth.
// Only signed PCM depths are supported.
func getMaxValue(bitDepth int) (float64, error) {
	switch bitDepth {
	case bitsPerSample16:
		return maxInt16, nil
	case bitsPerSample24:
		return maxInt24, nil
	case bitsPerSample32:
		return maxInt32, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth %d (want 16, 24 or 32)", bitDepth)
	}
}

// loadOpenViBE reads an openViBE CSV export. The header names the channels
// between the time and sampling rate columns; the first data row carries
// the sample rate in its last field.
func loadOpenViBE(path string) (*synchrony.Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return parseOpenViBE(f)
}

func parseOpenViBE(r io.Reader) (*synchrony.Recording, error) {
	cr := csv.NewReader(r)
	cr.Comma = openViBEDelimiter
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < 3 || header[0] != openViBETimeCol || header[len(header)-1] != openViBERateCol {
		return nil, fmt.Errorf("not an openViBE header: %q", strings.Join(header, string(openViBEDelimiter)))
	}
	labels := append([]string(nil), header[1:len(header)-1]...)
	channels := len(labels)

	rows := make([][]float64, channels)
	var rate float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		want := channels + 1
		if line == 2 {
			want++
		}
		if len(rec) < want || (len(rec) > want && strings.TrimSpace(rec[want]) != "") {
			return nil, fmt.Errorf("line %d: %d fields, want %d", line, len(rec), want)
		}
		for k := range channels {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[k+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, channel %s: %w", line, labels[k], err)
			}
			rows[k] = append(rows[k], v)
		}
		if line == 2 {
			if rate, err = strconv.ParseFloat(strings.TrimSpace(rec[channels+1]), 64); err != nil {
				return nil, fmt.Errorf("line %d: sampling rate: %w", line, err)
			}
		}
	}
	if len(rows[0]) == 0 {
		return nil, errors.New("no samples after header")
	}
	return synchrony.FromChannels(rows, rate, labels...)
}

// loadText reads a whitespace or comma delimited matrix with one row per
// channel.
func loadText(path string, rate float64) (*synchrony.Recording, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	delim := " "
	if bytes.ContainsRune(raw, ',') {
		delim = ","
	}
	m, err := synchrony.ReadMatrix(bytes.NewReader(raw), synchrony.WithDelimiter(delim))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return synchrony.NewRecording(m, rate, nil)
}
