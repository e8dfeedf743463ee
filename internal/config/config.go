package config

type Config interface {
	EnvConfig
	OAuthConfig
	StoreConfig
	BridgeConfig
}

type mainConfig struct {
	EnvVars
	OAuth
	Store
	Bridge
}

func New() Config {
	return mainConfig{}
}
