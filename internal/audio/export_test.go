package audio

// Export internal functions for testing.
// This file is only compiled during tests (suffix _test.go).

// QuantizeSample exports quantizeSample for testing.
var QuantizeSample = quantizeSample

// SafeExt exports safeExt for testing.
var SafeExt = safeExt

// DeinterleaveF32LE exports deinterleaveF32LE for testing.
var DeinterleaveF32LE = deinterleaveF32LE

// SampleTime exports sampleTime for testing.
var SampleTime = sampleTime
