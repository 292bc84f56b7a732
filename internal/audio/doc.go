// Package audio decodes song audio to mono PCM and turns it into MFCC feature
// tables.
//
// Decoding shells out to ffmpeg; feature extraction is pure Go on top of
// gonum's FFT and DCT.
package audio
