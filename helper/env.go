package helper

import (
	"fmt"
	"os"
	"strings"

	"github.com/paracelsus/martpipe/constants"
)

// GetEnvVar fetches an OS environment variable.
// If the variable is not set it returns empty string.
// It also returns an error if there is a missing value AND mandatory == true.
func GetEnvVar(k string, mandatory bool) (string, error) {
	if value := os.Getenv(k); value != "" {
		return value, nil
	}
	if mandatory {
		return "", fmt.Errorf("environment variable %v is not set", k)
	}
	return "", nil
}

// ReadValueFromEnvWithDefault reads the value of name from the environment.
// If it's not set then it will apply the supplied defaultValue.
func ReadValueFromEnvWithDefault(name string, defaultValue string) (v string) {
	v = os.Getenv(name)
	if v == "" && defaultValue != "" { // if the environment variable is not set and we have been given a default value...
		v = defaultValue
	}
	return
}

// EnvVarName builds a prefixed environment variable name from a config key,
// upper-cased with dashes converted to underscores.
func EnvVarName(key string) string {
	n := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(key), "-", "_"))
	return fmt.Sprintf("%v_%v", constants.EnvVarPrefix, n)
}
