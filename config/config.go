// Package config loads the pipeline configuration from the martpipe home
// directory (~/.martpipe/config.yaml by default), with MP_* environment
// variables overriding individual keys so containerised deployments need
// no config file at all.
package config

import (
	"fmt"
	"time"

	"github.com/paracelsus/martpipe/constants"
	"github.com/pkg/errors"
)

const (
	MainDir            = ".martpipe"
	MainFileNamePrefix = "config"
	MainFileNameExt    = "yaml"
	MainFileFullName   = MainFileNamePrefix + "." + MainFileNameExt
)

// FileNotFoundError denotes failing to find a configuration file.
type FileNotFoundError struct {
	name string
}

// Error returns the formatted configuration error.
func (f FileNotFoundError) Error() string {
	return fmt.Sprintf("config file %q not found", f.name)
}

// Config is the full pipeline configuration.
type Config struct {
	LogLevel                  string  `json:"logLevel" yaml:"logLevel"`
	StartDate                 string  `json:"startDate" yaml:"startDate"` // first day of the daily metrics spine, YYYY-MM-DD.
	StatsDumpFrequencySeconds int     `json:"statsDumpFrequencySeconds" yaml:"statsDumpFrequencySeconds"`
	Sources                   Sources `json:"sources" yaml:"sources"`
	Output                    Output  `json:"output" yaml:"output"`
	Server                    Server  `json:"server" yaml:"server"`
}

// Sources locates the replicated inputs. Exactly one of the S3 bucket or
// the local directory supplies the flat files.
type Sources struct {
	OltpDsn      string `json:"oltpDsn" yaml:"oltpDsn"` // postgres:// DSN of the replica database.
	S3Bucket     string `json:"s3Bucket" yaml:"s3Bucket"`
	S3Region     string `json:"s3Region" yaml:"s3Region"`
	S3Prefix     string `json:"s3Prefix" yaml:"s3Prefix"`
	LocalDir     string `json:"localDir" yaml:"localDir"` // local alternative to the S3 bucket.
	ContactsCsv  string `json:"contactsCsv" yaml:"contactsCsv"`
	DealsCsv     string `json:"dealsCsv" yaml:"dealsCsv"`
	ContactsJson string `json:"contactsJson" yaml:"contactsJson"`
}

type Output struct {
	Dir string `json:"dir" yaml:"dir"` // directory receiving the exported mart CSV files.
}

type Server struct {
	Addr string `json:"addr" yaml:"addr"`
	Port int    `json:"port" yaml:"port"`
}

// NewConfig returns a Config populated with defaults. Sources have no
// defaults; they must come from the file or the environment.
func NewConfig() *Config {
	return &Config{
		LogLevel:                  "info",
		StartDate:                 "2026-01-01",
		StatsDumpFrequencySeconds: 5,
		Sources: Sources{
			ContactsCsv:  "contacts.csv",
			DealsCsv:     "deals.csv",
			ContactsJson: "contacts.json",
		},
		Output: Output{Dir: "."},
		Server: Server{Addr: "0.0.0.0", Port: 8080},
	}
}

// Validate checks the keys every run needs.
func (c *Config) Validate() error {
	if c.Sources.OltpDsn == "" {
		return errors.New("missing sources.oltpDsn - set it in config.yaml or via " + constants.EnvVarPrefix + "_OLTP_DSN")
	}
	if c.Sources.S3Bucket == "" && c.Sources.LocalDir == "" {
		return errors.New("missing flat file source - set sources.s3Bucket or sources.localDir")
	}
	if c.Sources.S3Bucket != "" && c.Sources.LocalDir != "" {
		return errors.New("sources.s3Bucket and sources.localDir are mutually exclusive")
	}
	if _, err := c.StartDateTime(); err != nil {
		return err
	}
	return nil
}

// StartDateTime parses the configured spine start date.
func (c *Config) StartDateTime() (time.Time, error) {
	t, err := time.Parse(constants.DateFormat, c.StartDate)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "bad startDate %q, want %v", c.StartDate, constants.DateFormat)
	}
	return t, nil
}
