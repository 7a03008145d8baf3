// s3fs is a thin command line wrapper around the filesystem adapter,
// mostly useful for poking at an S3 compatible service: ls, tree,
// cat, put, stat, mkdir, rm, cp and mv over s3:// and s3x:// URIs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	s3 "github.com/objfs/s3fs/backend/s3"
	"github.com/objfs/s3fs/fs"
	"github.com/objfs/s3fs/fs/config"
	"github.com/objfs/s3fs/fs/fserrors"
)

var (
	endpoint  string
	protocol  string
	region    string
	accessKey string
	secretKey string
	pathStyle bool
	verbose   bool
)

var root = &cobra.Command{
	Use:           "s3fs",
	Short:         "browse an S3 compatible service as a filesystem",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	flags := root.PersistentFlags()
	addFlags(flags)
}

func addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&endpoint, "endpoint", "", "endpoint override as host or host:port")
	flags.StringVar(&protocol, "protocol", "", "endpoint protocol, http or https")
	flags.StringVar(&region, "region", "", "region")
	flags.StringVar(&accessKey, "access-key", "", "access key, paired with --secret-key")
	flags.StringVar(&secretKey, "secret-key", "", "secret key")
	flags.BoolVar(&pathStyle, "path-style", true, "force path-style addressing")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// options assembles the construction options map from the flags
func options() map[string]string {
	opts := map[string]string{}
	if endpoint != "" {
		opts[config.PropertyEndpoint] = endpoint
	}
	if protocol != "" {
		opts[config.PropertyEndpointProtocol] = protocol
	}
	if region != "" {
		opts[config.PropertyRegion] = region
	}
	if accessKey != "" {
		opts[config.PropertyAccessKey] = accessKey
	}
	if secretKey != "" {
		opts[config.PropertySecretKey] = secretKey
	}
	opts[config.PropertyForcePathStyle] = fmt.Sprint(pathStyle)
	return opts
}

// resolve turns a URI argument into a path, creating the filesystem
// with the flag options on first use
func resolve(ctx context.Context, provider *s3.Provider, uri string) (*fs.Path, error) {
	if _, err := provider.NewFileSystem(ctx, uri, options()); err != nil && !fserrors.IsAlreadyExists(err) {
		return nil, err
	}
	return provider.GetPath(ctx, uri)
}

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "s3fs: %v\n", err)
		os.Exit(1)
	}
}
