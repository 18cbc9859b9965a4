package config

import (
	"os"
	"path"
	"strconv"

	"github.com/ghodss/yaml"
	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/paracelsus/martpipe/helper"
	"github.com/pkg/errors"
	yamlv2 "gopkg.in/yaml.v2"
)

// DefaultPath returns the full path of the default config file under the
// martpipe home directory.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "unable to find home directory")
	}
	return path.Join(home, MainDir, MainFileFullName), nil
}

// Load reads the config file at filePath, layering it over the defaults
// and applying environment overrides last. A missing file is not an error
// when the environment supplies the mandatory keys; the caller sees any
// gap from Validate().
func Load(filePath string) (*Config, error) {
	c := NewConfig()
	b, err := os.ReadFile(filePath)
	if err != nil {
		if !os.IsNotExist(err) { // a present but unreadable file is fatal...
			return nil, errors.Wrapf(err, "error reading config file %v", filePath)
		}
	} else {
		// Round-trip via a generic map so partial files only override the
		// keys they mention.
		raw := make(map[string]interface{})
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, errors.Wrapf(err, "error parsing config file %v", filePath)
		}
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName: "json",
			Result:  c,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, errors.Wrapf(err, "error decoding config file %v", filePath)
		}
	}
	applyEnvOverrides(c)
	return c, nil
}

// Save writes the config to filePath, creating the directory if needed.
func Save(c *Config, filePath string) error {
	if err := makeDir(path.Dir(filePath)); err != nil {
		return err
	}
	b, err := yamlv2.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "error marshalling config")
	}
	return os.WriteFile(filePath, b, 0644)
}

// applyEnvOverrides layers MP_* environment variables over the loaded
// values. Variables follow the flattened key names, e.g. MP_OLTP_DSN.
func applyEnvOverrides(c *Config) {
	setString := func(key string, target *string) {
		if v, _ := helper.GetEnvVar(helper.EnvVarName(key), false); v != "" {
			*target = v
		}
	}
	setString("log-level", &c.LogLevel)
	setString("start-date", &c.StartDate)
	setString("oltp-dsn", &c.Sources.OltpDsn)
	setString("s3-bucket", &c.Sources.S3Bucket)
	setString("s3-region", &c.Sources.S3Region)
	setString("s3-prefix", &c.Sources.S3Prefix)
	setString("local-dir", &c.Sources.LocalDir)
	setString("contacts-csv", &c.Sources.ContactsCsv)
	setString("deals-csv", &c.Sources.DealsCsv)
	setString("contacts-json", &c.Sources.ContactsJson)
	setString("output-dir", &c.Output.Dir)
	setString("server-addr", &c.Server.Addr)
	if v, _ := helper.GetEnvVar(helper.EnvVarName("server-port"), false); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// makeDir will make the given directory if it does not already exist.
// If it exists then return nil.
// An error is returned if there is a problem creating the dir.
func makeDir(dir string) error {
	_, err := os.Stat(dir)
	if os.IsNotExist(err) { // if it doesn't exist...
		if err = os.MkdirAll(dir, 0755); err != nil { // if the dir was NOT created...
			return errors.Errorf("error creating directory %v", dir)
		}
	} else if err != nil { // if there was an error getting status...
		return err
	}
	return nil
}
