package notify

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

const (
	toneFrequency = 880.0 // Hz
	toneDuration  = 500 * time.Millisecond
	sampleRate    = 44100
)

// synthesizeTone renders the alert tone as a complete 16-bit mono WAV file.
// gain is 0.0-1.0; a short linear attack and release keep the edges from
// clicking.
func synthesizeTone(gain float64) []byte {
	if gain < 0 {
		gain = 0
	}
	if gain > 1 {
		gain = 1
	}

	seconds := toneDuration.Seconds()
	n := int(float64(sampleRate) * seconds)
	attack := 0.01
	release := 0.05

	pcm := make([]byte, 0, n*2)
	buf := make([]byte, 2)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		env := 1.0
		if t < attack {
			env = t / attack
		} else if remaining := seconds - t; remaining < release {
			env = remaining / release
		}
		sample := gain * env * math.Sin(2*math.Pi*toneFrequency*t)
		binary.LittleEndian.PutUint16(buf, uint16(int16(sample*math.MaxInt16)))
		pcm = append(pcm, buf...)
	}

	return wrapWAV(pcm)
}

// wrapWAV prefixes raw 16-bit mono PCM with a RIFF/WAVE header.
func wrapWAV(pcm []byte) []byte {
	var out bytes.Buffer
	dataLen := uint32(len(pcm))

	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(36+dataLen))
	out.WriteString("WAVE")

	out.WriteString("fmt ")
	binary.Write(&out, binary.LittleEndian, uint32(16))
	binary.Write(&out, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&out, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&out, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&out, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(&out, binary.LittleEndian, uint16(2))            // block align
	binary.Write(&out, binary.LittleEndian, uint16(16))           // bits per sample

	out.WriteString("data")
	binary.Write(&out, binary.LittleEndian, dataLen)
	out.Write(pcm)

	return out.Bytes()
}
