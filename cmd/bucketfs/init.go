package main

import (
	"fmt"

	"github.com/marmos91/bucketfs/pkg/config"
)

// runInit writes a sample configuration file.
func runInit(opts *options) error {
	path := opts.configPath
	if path == "" {
		var err error
		if path, err = config.InitConfig(opts.force); err != nil {
			return err
		}
	} else if err := config.InitConfigToPath(path, opts.force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	fmt.Println("Set S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY and S3_BUCKET, then run: bucketfs --mount <dir>")
	return nil
}
