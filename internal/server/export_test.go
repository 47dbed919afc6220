package server

// MaxFinishedJobs exports maxFinishedJobs for testing.
const MaxFinishedJobs = maxFinishedJobs
