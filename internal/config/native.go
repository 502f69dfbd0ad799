package config

import "github.com/caarlos0/env/v11"

// NativeConfig controls the native emulation launcher. Paths default to a
// RetroArch layout under /opt/retrocade; the kiosk unit is whatever systemd
// unit normally owns the display.
type NativeConfig struct {
	EmulatorBin   string `env:"NATIVE_EMULATOR" envDefault:"retroarch"`
	CompositorBin string `env:"NATIVE_COMPOSITOR" envDefault:"cage"`

	CoresDir   string `env:"NATIVE_CORES_DIR" envDefault:"/opt/retrocade/cores"`
	RomsDir    string `env:"NATIVE_ROMS_DIR" envDefault:"/opt/retrocade/roms"`
	ScratchDir string `env:"NATIVE_SCRATCH_DIR" envDefault:"/tmp/retrocade"`

	OptionsPath string `env:"NATIVE_OPTIONS_PATH" envDefault:"/opt/retrocade/retroarch-core-options.cfg"`

	KioskUnit string `env:"NATIVE_KIOSK_UNIT" envDefault:"kiosk-display.service"`
	DropinDir string `env:"NATIVE_DROPIN_DIR" envDefault:"/run/systemd/system"`

	SettleMS         int `env:"NATIVE_SETTLE_MS" envDefault:"1500"`
	CommandTimeoutMS int `env:"NATIVE_COMMAND_TIMEOUT_MS" envDefault:"10000"`
}

func LoadNative() (NativeConfig, error) {
	var cfg NativeConfig
	err := env.Parse(&cfg)
	return cfg, err
}
