// Package simplesubmission provides a reusable library for collecting file
// submissions against form-declared acceptance rules, with pluggable
// repository and blob storage backends.
//
// It exposes a single Service interface that orchestrates form management,
// constraint-driven validation of uploaded files, content-addressed storage
// with deduplication, and reference-counted deletion of stored bytes.
// Implementations of repositories (e.g., memory, Postgres) and blob stores
// (e.g., memory, filesystem, S3) are provided under subpackages, along with
// an ffprobe-backed media prober.
//
// Validation outcomes are values, not errors: a rejected upload produces a
// Verdict listing the violated constraints. Only infrastructure failures
// (storage I/O, probe process launch) surface as errors.
package simplesubmission
