//go:build property
// +build property

package config

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

// TestConfigurationProperties tests configuration loading and validation properties
func TestConfigurationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("reasonable server settings load", prop.ForAll(
		func(port int, host string) bool {
			v := viper.New()
			v.Set("server.port", port)
			v.Set("server.host", host)
			config, err := LoadFrom(v)
			if err != nil {
				return false
			}
			return config.Addr() == fmt.Sprintf("%s:%d", host, port)
		},
		gen.IntRange(1024, 65535),
		gen.RegexMatch(`^[a-z][a-z0-9]{0,20}$`),
	))

	properties.Property("out of range ports are rejected", prop.ForAll(
		func(port int) bool {
			v := viper.New()
			v.Set("server.port", port)
			_, err := LoadFrom(v)
			return err != nil
		},
		gen.OneGenOf(gen.IntRange(-100000, -1), gen.IntRange(65536, 1000000)),
	))

	properties.Property("traversal in manifest paths is rejected", prop.ForAll(
		func(prefix, suffix string) bool {
			return validatePath(prefix+"/../../"+suffix) != nil
		},
		gen.RegexMatch(`^[a-z]{1,8}$`),
		gen.RegexMatch(`^[a-z]{1,8}\.yml$`),
	))

	properties.TestingRun(t)
}
