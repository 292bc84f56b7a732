// Package beatmap reads and writes Beat Saber v2 chart files.
//
// It owns the fixed hand and lane schema shared by the dataset pipeline, the
// parsers for info.dat (and legacy info.json) plus difficulty charts, and
// Encode, which turns a wide table of lane probabilities back into a sparse
// note list.
package beatmap
