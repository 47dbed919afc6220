package cli

// Export internal functions for testing.

// RunTranscribe exports runTranscribe for testing.
var RunTranscribe = runTranscribe

// RunProbe exports runProbe for testing.
var RunProbe = runProbe

// RunServe exports runServe for testing.
var RunServe = runServe

// SupportedFormatsList exports supportedFormatsList for testing.
var SupportedFormatsList = supportedFormatsList

// ProbeDecision exports probeDecision for testing.
var ProbeDecision = probeDecision

// WriteFileAtomic exports writeFileAtomic for testing.
var WriteFileAtomic = writeFileAtomic

// EmitTranscript exports emitTranscript for testing.
var EmitTranscript = emitTranscript

// TranscribeOptions exports transcribeOptions for testing.
type TranscribeOptions = transcribeOptions
