// Package version reports the imgprep build: release version, commit and
// build time, set with -ldflags or read from the embedded VCS stamp:
//
//	go build -ldflags "-X github.com/kbukum/imgprep/version.Version=1.2.0" ./cmd/imgprep
package version
