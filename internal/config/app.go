package config

type AppConfig struct {
	Server ServerConfig
	Native NativeConfig
	Log    LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	nativeCfg, err := LoadNative()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server: serverCfg,
		Native: nativeCfg,
		Log:    logCfg,
	}, nil
}
