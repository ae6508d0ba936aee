package config_test

import (
	"fmt"

	"github.com/mwangi/occlusion/config"
)

func ExampleFromEnv() {
	// Typically these are read from the process environment by FromEnv;
	// shown here as an Opts literal for a runnable example.
	o := config.Opts{
		DataSource:     "/var/lib/occlusion/data.csv",
		ReloadInterval: config.DefaultReloadInterval,
		MaxFailures:    config.DefaultMaxFailures,
		OnMaxFailures:  config.DefaultOnMaxFailures,
		HTTPTimeout:    config.DefaultHTTPTimeout,
		Variant:        config.VariantHashmap,
		ListenAddr:     config.DefaultListenAddr,
	}
	fmt.Println(o.Variant)
	// Output: hashmap
}
