// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/zaf/g711"
)

const (
	BytesPerSample = 2  // LINEAR16 → 2 bytes per sample
	BitsPerSample  = 16 // LINEAR16 → 16 bits per sample

	formatPCM  = 1 // WAV PCM format tag
	formatULaw = 7 // WAV µ-law format tag

	// TelephonySampleRate is the narrow-band rate all call audio is kept at.
	TelephonySampleRate = 8000
	// Channels is always mono on a call leg.
	Channels = 1

	wavHeaderLen = 44
)

// EncodeWAV wraps raw 16-bit little-endian PCM into a mono WAV container.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	byteRate := sampleRate * Channels * BytesPerSample

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(formatPCM))
	binary.Write(&buf, binary.LittleEndian, uint16(Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(Channels*BytesPerSample))
	binary.Write(&buf, binary.LittleEndian, uint16(BitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// EncodeULawWAV wraps 16-bit PCM into a µ-law WAV container, halving payload
// size. Asterisk plays these natively on narrow-band legs.
func EncodeULawWAV(pcm []byte, sampleRate int) []byte {
	ulaw := g711.EncodeUlaw(pcm)

	var buf bytes.Buffer
	byteRate := sampleRate * Channels

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(ulaw)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(formatULaw))
	binary.Write(&buf, binary.LittleEndian, uint16(Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(Channels))
	binary.Write(&buf, binary.LittleEndian, uint16(8))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(ulaw)))
	buf.Write(ulaw)

	return buf.Bytes()
}

// DecodeWAV extracts the raw sample payload and sample rate from a mono WAV
// buffer. µ-law payloads are expanded back to 16-bit PCM.
func DecodeWAV(data []byte) (pcm []byte, sampleRate int, err error) {
	if len(data) < wavHeaderLen || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE buffer (%d bytes)", len(data))
	}

	format := int(binary.LittleEndian.Uint16(data[20:22]))
	sampleRate = int(binary.LittleEndian.Uint32(data[24:28]))

	// Walk chunks from the end of the fmt header to find "data"; some
	// encoders insert LIST/fact chunks before it.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		if id == "data" {
			payload := data[body : body+size]
			switch format {
			case formatPCM:
				return payload, sampleRate, nil
			case formatULaw:
				return g711.DecodeUlaw(payload), sampleRate, nil
			default:
				return nil, 0, fmt.Errorf("unsupported WAV format tag %d", format)
			}
		}
		// Chunks are word aligned.
		if size%2 == 1 {
			size++
		}
		off = body + size
	}
	return nil, 0, fmt.Errorf("WAV data chunk not found")
}
