package common

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ConfigureLogging sets up logrus the same way across every costmodel
// binary: colored text on stdout, full timestamps.
func ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	log.SetOutput(os.Stdout)
}

// BindCommandlineArguments wires pflag's global CommandLine flag set
// into viper. Flags a cobra command declares (e.g. --config) live on
// that command's own flag set; the command binds them to viper itself
// and cobra parses them when the command executes.
func BindCommandlineArguments() {
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}

// LoadConfig reads defaultPath/config.yaml, then layers any additional
// paths named in overridePaths on top (later paths win), and unmarshals
// the merged result into config.
func LoadConfig(config interface{}, defaultPath string, overridePaths []string) {
	viper.SetConfigName("config")
	viper.AddConfigPath(defaultPath)
	if err := viper.ReadInConfig(); err != nil {
		log.Error(err)
		os.Exit(-1)
	}
	for _, path := range overridePaths {
		viper.SetConfigFile(path)
		if err := viper.MergeInConfig(); err != nil {
			log.Error(err)
			os.Exit(-1)
		}
	}
	if err := viper.Unmarshal(config); err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}
