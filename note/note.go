// Package note converts MIDI note numbers to pitch names and frequencies.
package note

import (
	"fmt"
	"math"
)

// A4 is the note number of concert pitch A (440 Hz).
const A4 = 69

// names holds the pitch class names, starting at C.
var names = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Freq returns the equal-temperament frequency in Hz of note n, rounded to the
// nearest integer.
//
//	freq = 440 * 2^((n-69)/12)
func Freq(n uint8) uint16 {
	return uint16(math.Round(FreqFloat(n)))
}

// FreqFloat returns the exact equal-temperament frequency in Hz of note n.
func FreqFloat(n uint8) float64 {
	return 440 * math.Pow(2, float64(int(n)-A4)/12)
}

// Name returns the scientific pitch name of note n, where note 60 is C4.
func Name(n uint8) string {
	octave := int(n)/12 - 1
	return fmt.Sprintf("%s%d", names[n%12], octave)
}
