// Package storage provides the object store abstraction used to read source
// images and write prepared dataset splits.
//
// # Backends
//
//   - storage/local: local filesystem rooted at a base path
//   - storage/s3: Amazon S3 and S3-compatible services (MinIO)
//   - storage/memory: in-process map, for tests and dry runs
//
// A backend registers its factory on import; New picks one by name:
//
//	import _ "github.com/kbukum/imgprep/storage/local"
//
//	store, err := storage.New(ctx, storage.Config{Provider: "local", BasePath: "out"}, log)
//
// # Configuration
//
//	output:
//	  storage:
//	    provider: "s3"
//	    bucket: "datasets"
//	    region: "us-east-1"
package storage
