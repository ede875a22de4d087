// Package audio moves samples from a refillable stream buffer to an output
// transport. A Pipeline converts buffered frames into 32-bit transport words
// on each transport tick; transports (oto, PortAudio, a paced writer and a
// mock) own the clock that calls it.
package audio
