// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"os/exec"
	"strings"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/mrdp/mrdp/internal/db"
)

func newSchemaFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        "schema",
		Usage:       "list the row keys available to --attrs",
		HideDefault: true,
	}
}

func newTLDRFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        "tldr",
		Usage:       "show tldr page",
		Hidden:      !pathHas("tldr"),
		HideDefault: true,
	}
}

// NewGlobalFlags returns the output flags shared by every listing command.
func NewGlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "attrs",
			Aliases: []string{"a"},
			Usage:   "comma-separated list of attributes to include in results",
		},
		&cli.BoolFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output",
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to results",
		},
		&cli.BoolFlag{
			Name:    "local",
			Aliases: []string{"l"},
			Usage:   "show local timestamps",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format (text, json, yaml, raw)",
			Value:   "text",
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.IntFlag{
			Name:  "padding",
			Usage: "spaces between text columns",
			Value: 2,
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of attributes to sort the results by",
		},
		&cli.BoolFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
		},
	}
}

// Sources builds a flag's value chain: environment variables first, then
// the namespaced key and the global key of the config file at path.
func Sources(ns, name, path string, envs ...string) cli.ValueSourceChain {
	chain := cli.NewValueSourceChain()
	for _, e := range envs {
		chain.Chain = append(chain.Chain, cli.EnvVar(e))
	}
	if path == "" {
		return chain
	}
	if ns != "" {
		chain.Chain = append(chain.Chain, yaml.YAML(ns+"."+name, altsrc.StringSourcer(path)))
	}
	chain.Chain = append(chain.Chain, yaml.YAML(name, altsrc.StringSourcer(path)))
	return chain
}

// NewAWSFlags returns the profile, region and client tuning flags.
func NewAWSFlags(ns, path string) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "max-attempts",
			Usage:   "AWS API attempts per call (0 uses the SDK default)",
			Sources: Sources(ns, "max-attempts", path, "AWS_MAX_ATTEMPTS"),
		},
		&cli.StringFlag{
			Name:    "profile",
			Usage:   "AWS shared config profile",
			Sources: Sources(ns, "profile", path, "AWS_PROFILE"),
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "AWS region",
			Sources: Sources(ns, "region", path, "AWS_REGION", "AWS_DEFAULT_REGION"),
		},
		&cli.BoolFlag{
			Name:    "s3-path-style",
			Usage:   "use path-style S3 addressing, as S3-compatible stores require",
			Sources: Sources(ns, "s3-path-style", path, "MRDP_S3_PATH_STYLE"),
		},
	}
}

// endpoint names one database's flags and their defaults.
type endpoint struct {
	prefix string
	env    string
	port   int
	dbname string
	user   string
}

var (
	rdsEndpoint = endpoint{
		prefix: "rds",
		env:    "RDS",
		port:   db.DefaultRDSPort,
		dbname: db.DefaultRDSName,
		user:   db.DefaultRDSUser,
	}
	redshiftEndpoint = endpoint{
		prefix: "redshift",
		env:    "REDSHIFT",
		port:   db.DefaultRedshiftPort,
		dbname: db.DefaultRedshiftName,
		user:   db.DefaultRedshiftUser,
	}
)

func (e endpoint) flag(suffix string) string { return e.prefix + "-" + suffix }

// NewDBFlags returns the connection flags for an endpoint, named
// <prefix>-host and so on and fed by the <ENV>_HOST style variables the
// services are deployed with.
func (e endpoint) NewDBFlags(ns, path string) []cli.Flag {
	src := func(suffix, env string) cli.ValueSourceChain {
		return Sources(ns, e.flag(suffix), path, e.env+"_"+env)
	}
	title := strings.ToUpper(e.prefix[:1]) + e.prefix[1:]
	if e.prefix == "rds" {
		title = "RDS"
	}
	return []cli.Flag{
		&cli.StringFlag{Name: e.flag("host"), Usage: title + " host", Sources: src("host", "HOST")},
		&cli.IntFlag{Name: e.flag("port"), Usage: title + " port", Value: e.port, Sources: src("port", "PORT")},
		&cli.StringFlag{Name: e.flag("db"), Usage: title + " database", Value: e.dbname, Sources: src("db", "DBNAME")},
		&cli.StringFlag{Name: e.flag("user"), Usage: title + " user", Value: e.user, Sources: src("user", "USER")},
		&cli.StringFlag{Name: e.flag("password"), Usage: title + " password", Sources: src("password", "PASSWORD")},
		&cli.StringFlag{Name: e.flag("secret-arn"), Usage: "Secrets Manager secret holding the " + title + " password", Sources: src("secret-arn", "SECRET_ARN")},
		&cli.StringFlag{Name: e.flag("sslmode"), Usage: title + " sslmode", Value: "require", Sources: src("sslmode", "SSLMODE")},
	}
}

// Params reads the endpoint's flags from cmd.
func (e endpoint) Params(cmd *cli.Command) db.Params {
	return db.Params{
		Host:      cmd.String(e.flag("host")),
		Port:      int(cmd.Int(e.flag("port"))),
		DBName:    cmd.String(e.flag("db")),
		User:      cmd.String(e.flag("user")),
		Password:  cmd.String(e.flag("password")),
		SecretARN: cmd.String(e.flag("secret-arn")),
		SSLMode:   cmd.String(e.flag("sslmode")),
	}
}

// NewBucketFlag returns a bucket flag fed by env.
func NewBucketFlag(name, usage, env, ns, path string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    name,
		Usage:   usage,
		Sources: Sources(ns, name, path, env),
	}
}

// pathHas reports whether target is on the PATH.
func pathHas(target string) bool {
	_, err := exec.LookPath(target)
	return err == nil
}
