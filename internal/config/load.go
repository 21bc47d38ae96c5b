package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load initializes the configuration from file and environment variables.
func Load(cfgFile string) {
	// explicit .env loading; a missing .env is fine
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search config in the working directory with name "dbt-glue".
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("dbt-glue")
	}

	viper.SetEnvPrefix("DBT_GLUE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// Honor the standard AWS env vars when the prefixed ones are not set.
	if os.Getenv("DBT_GLUE_REGION") == "" && os.Getenv("AWS_REGION") != "" {
		viper.SetDefault("region", os.Getenv("AWS_REGION"))
	}
	if os.Getenv("DBT_GLUE_PROFILE") == "" && os.Getenv("AWS_PROFILE") != "" {
		viper.SetDefault("profile", os.Getenv("AWS_PROFILE"))
	}

	// Set defaults
	viper.SetDefault("glue_version", "4.0")
	viper.SetDefault("worker_type", "G.1X")
	viper.SetDefault("number_of_workers", 2)
	viper.SetDefault("idle_timeout", 60)
	viper.SetDefault("timeout", 3600)
	viper.SetDefault("polling_interval", 10)
	viper.SetDefault("session_provisioning_timeout", 120)
	viper.SetDefault("metrics_port", 2112)
	viper.SetDefault("verbose", false)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// Credentials describes how to reach AWS Glue and how interactive sessions
// should be provisioned. Credential material itself is resolved by the AWS
// default chain; this only carries the knobs around it.
type Credentials struct {
	Region  string
	Profile string
	RoleArn string

	// SessionID pins submissions to an existing interactive session instead
	// of provisioning one.
	SessionID string

	GlueVersion     string
	WorkerType      string
	NumberOfWorkers int32
	// IdleTimeoutMinutes is how long Glue keeps an idle session alive.
	IdleTimeoutMinutes int32
	// SessionProvisioningTimeoutSeconds bounds the wait for a new session to
	// reach READY.
	SessionProvisioningTimeoutSeconds int
}

// CredentialsFromViper builds Credentials from the loaded configuration.
func CredentialsFromViper() (*Credentials, error) {
	creds := &Credentials{
		Region:                            viper.GetString("region"),
		Profile:                           viper.GetString("profile"),
		RoleArn:                           viper.GetString("role_arn"),
		SessionID:                         viper.GetString("session_id"),
		GlueVersion:                       viper.GetString("glue_version"),
		WorkerType:                        viper.GetString("worker_type"),
		NumberOfWorkers:                   viper.GetInt32("number_of_workers"),
		IdleTimeoutMinutes:                viper.GetInt32("idle_timeout"),
		SessionProvisioningTimeoutSeconds: viper.GetInt("session_provisioning_timeout"),
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}

// Validate checks the fields required to talk to Glue at all.
func (c *Credentials) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("glue credentials: region is required")
	}
	// A pinned session already carries its role.
	if c.RoleArn == "" && c.SessionID == "" {
		return fmt.Errorf("glue credentials: role_arn is required to provision a session")
	}
	return nil
}
