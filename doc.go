// Package adter implements the ADTER (Address, Decimation, and Time Event
// Representation) event-camera transcoder in pure Go.
//
// ADTER is an intermediate representation for asynchronous, per-pixel
// brightness-change events: rather than a fixed-rate grid of frames, a
// stream is a sequence of (coordinate, decimation, time) events, each
// describing how much light a single pixel integrated and over how long.
// This package transcodes between conventional intensity frames and that
// event representation, in both directions:
//
//   - Encode: a grid of per-pixel speculative integration trees (the pixel
//     arena) ingests successive intensity frames and emits events whenever
//     a pixel's integrated intensity would otherwise saturate or its
//     value moves past an adaptive contrast threshold.
//   - Decode: a framer consumes that event stream and reconstructs
//     fixed-rate intensity frames, guaranteeing forward progress even when
//     individual pixels receive events at very different rates.
//
// Two wire formats are supported, selected by EncoderOptions.Compressed:
// a fixed-width raw format (one 9- or 10-byte record per event, trivially
// seekable) and a compressed format (events tiled into 16x16 blocks,
// intra/inter predicted, and arithmetic-coded into per-frame units called
// ADUs). Both share the same on-disk header, defined in internal/container.
//
// Basic usage for encoding:
//
//	opts := adter.DefaultEncoderOptions(width, height, 1)
//	enc, err := adter.NewEncoder(w, opts)
//	for _, frame := range frames {
//		err = enc.IngestFrame(ctx, frame, timeSpanned)
//	}
//	err = enc.Close()
//
// Basic usage for decoding:
//
//	dec, err := adter.NewDecoder[uint8](r, adter.DefaultDecoderOptions(30, adter.Continuous),
//		func(v float64) uint8 { return uint8(v) },
//		func(v uint8) float64 { return float64(v) })
//	for {
//		frame, err := dec.ReadFrame()
//		if err == io.EOF {
//			break
//		}
//	}
package adter
