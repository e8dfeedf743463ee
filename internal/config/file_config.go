package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// fileValues are the settings that may be supplied via a YAML config file.
// Anything left empty falls back to the environment-backed defaults.
type fileValues struct {
	AppName string `yaml:"appName"`
	OAuth   struct {
		ClientID     string `yaml:"clientId"`
		AuthEndpoint string `yaml:"authEndpoint"`
		Issuer       string `yaml:"issuer"`
		LoginTimeout string `yaml:"loginTimeout"`
	} `yaml:"oauth"`
	Store struct {
		APIKey    string `yaml:"apiKey"`
		ProjectID string `yaml:"projectId"`
	} `yaml:"store"`
	Bridge struct {
		Addr string `yaml:"addr"`
	} `yaml:"bridge"`
}

type fileConfig struct {
	mainConfig
	v fileValues
}

// FromFile layers a YAML config file over the environment defaults.
// A missing file is not an error; the plain env config is returned.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FromFile] read config file")
	}

	var v fileValues
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, "[FromFile] parse config file")
	}
	return fileConfig{v: v}, nil
}

func (f fileConfig) GetAppName() string {
	if f.v.AppName != "" {
		return f.v.AppName
	}
	return f.mainConfig.GetAppName()
}

func (f fileConfig) GetClientID() string {
	if f.v.OAuth.ClientID != "" {
		return f.v.OAuth.ClientID
	}
	return f.mainConfig.GetClientID()
}

func (f fileConfig) GetAuthEndpoint() string {
	if f.v.OAuth.AuthEndpoint != "" {
		return f.v.OAuth.AuthEndpoint
	}
	return f.mainConfig.GetAuthEndpoint()
}

func (f fileConfig) GetIssuer() string {
	if f.v.OAuth.Issuer != "" {
		return f.v.OAuth.Issuer
	}
	return f.mainConfig.GetIssuer()
}

func (f fileConfig) GetLoginTimeout() time.Duration {
	if d, err := time.ParseDuration(f.v.OAuth.LoginTimeout); err == nil && d > 0 {
		return d
	}
	return f.mainConfig.GetLoginTimeout()
}

func (f fileConfig) GetAPIKey() string {
	if f.v.Store.APIKey != "" {
		return f.v.Store.APIKey
	}
	return f.mainConfig.GetAPIKey()
}

func (f fileConfig) GetStoreProjectID() string {
	if f.v.Store.ProjectID != "" {
		return f.v.Store.ProjectID
	}
	return f.mainConfig.GetStoreProjectID()
}

func (f fileConfig) GetBridgeAddr() string {
	if f.v.Bridge.Addr != "" {
		return f.v.Bridge.Addr
	}
	return f.mainConfig.GetBridgeAddr()
}
