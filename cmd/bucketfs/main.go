// Command bucketfs mounts an object store bucket as a POSIX-like
// filesystem through FUSE.
//
// Usage:
//
//	bucketfs [mount] --mount /mnt/bucket [--config path] [--env-file path]
//	bucketfs init [--config path] [--force]
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// options holds the parsed command line.
type options struct {
	command    string
	configPath string
	envFile    string
	logLevel   string
	mountPoint string
	force      bool
}

var errHelp = errors.New("help requested")

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	switch opts.command {
	case "init":
		err = runInit(opts)
	default:
		err = runMount(opts)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs splits an optional subcommand from the flags.
func parseArgs(args []string) (*options, error) {
	opts := &options{command: "mount"}

	if len(args) > 0 && (args[0] == "mount" || args[0] == "init") {
		opts.command = args[0]
		args = args[1:]
	}

	flagSet := pflag.NewFlagSet("bucketfs", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to the config file (default: $XDG_CONFIG_HOME/bucketfs/config.yaml)")
	flagSet.StringVar(&opts.envFile, "env-file", "", "load environment variables from this file (default: .env when present)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "override the log level (DEBUG, INFO, WARN, ERROR)")
	flagSet.StringVarP(&opts.mountPoint, "mount", "m", "", "directory to mount on (overrides mount.mount_point)")
	flagSet.BoolVarP(&opts.force, "force", "f", false, "overwrite an existing config file (init only)")
	flagSet.Usage = func() { printHelp(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil, errHelp
		}
		return nil, err
	}

	// A bare positional argument is the mount point
	if rest := flagSet.Args(); len(rest) > 0 {
		if opts.command != "mount" || opts.mountPoint != "" || len(rest) > 1 {
			return nil, fmt.Errorf("unexpected argument: %s", rest[0])
		}
		opts.mountPoint = rest[0]
	}

	return opts, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `bucketfs mounts an object store bucket as a filesystem.

Usage:
  bucketfs [mount] [flags] [mountpoint]
  bucketfs init [--config path] [--force]

Commands:
  mount   mount the configured store (default)
  init    write a sample configuration file

S3 credentials are read from S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY and
S3_BUCKET, or from the store.s3 section of the config file.

Flags:
%s`, flagSet.FlagUsages())
}
