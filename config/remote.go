package config

import "fmt"

// RemoteConfig defines connection settings for the remote session service
// that hosts slave expert sessions. Required once any genie profile exists.
type RemoteConfig struct {
	BaseURL string `hcl:"base_url"`
	Token   string `hcl:"token,optional"`

	CreateTimeoutSeconds int `hcl:"create_timeout_seconds,optional"`
	SubmitTimeoutSeconds int `hcl:"submit_timeout_seconds,optional"`
	StatusTimeoutSeconds int `hcl:"status_timeout_seconds,optional"`
}

// Defaults fills in default values for unset fields
func (r *RemoteConfig) Defaults() {
	if r.CreateTimeoutSeconds <= 0 {
		r.CreateTimeoutSeconds = 60
	}
	if r.SubmitTimeoutSeconds <= 0 {
		r.SubmitTimeoutSeconds = 300
	}
	if r.StatusTimeoutSeconds <= 0 {
		r.StatusTimeoutSeconds = 30
	}
}

// Validate checks that required fields are set
func (r *RemoteConfig) Validate() error {
	if r.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	return nil
}
