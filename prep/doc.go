// Package prep turns a Config into a complete dataset preparation run.
//
// A run loads images from a directory or object store, applies the
// configured transform chain, splits the result by percentage and writes
// each branch under its own prefix in the output store:
//
//	cfg, err := prep.Load(config.WithConfigFile("prep.yml"))
//	if err != nil {
//	    return err
//	}
//	r, err := prep.NewRunner(ctx, *cfg)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	res, err := r.Run(ctx)
//
// Finished runs are recorded in the catalog and announced on Kafka when
// those sections are enabled.
package prep
