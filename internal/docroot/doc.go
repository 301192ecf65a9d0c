// Package docroot resolves request paths against a document root and reads
// the files behind them.
//
// Resolve maps a request path to a root-relative name: "/" becomes the
// configured default file, anything else loses its leading separator and is
// cleaned so that ".." cannot climb above the root.
//
// A Source reads whole files. Two implementations are provided:
//   - FSSource, backed by an afero.Fs. NewOSSource exposes a local directory
//     read-only; tests use afero.NewMemMapFs.
//   - S3Source, backed by an S3-compatible bucket through minio-go.
//
// Failures are normalised so callers can branch with errors.Is / errors.As:
// a missing file wraps ErrNotFound, anything else is a *ReadError.
package docroot
