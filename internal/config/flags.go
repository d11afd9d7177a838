package config

import "flag"

type CliConfig struct {
	ConfigFile string
	Debug      bool
}

// ParseArgs parses command-line flags, args excluding the program name.
func ParseArgs(args []string) (*CliConfig, error) {
	cli := &CliConfig{}
	fs := flag.NewFlagSet("asl-api", flag.ContinueOnError)
	fs.StringVar(&cli.ConfigFile, "config", "", "Path to an optional YAML config file")
	fs.BoolVar(&cli.Debug, "d", false, "Enable debug logging")
	fs.BoolVar(&cli.Debug, "debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cli, nil
}
