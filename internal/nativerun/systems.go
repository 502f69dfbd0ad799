package nativerun

import "sort"

// System describes one emulated platform the kiosk can launch.
type System struct {
	ID   string
	Name string
	// Core is the libretro core filename expected under CoresDir.
	Core string
	// Extensions is the ranked content-extension list, preferred first.
	// Used when picking a file out of an extracted archive.
	Extensions []string
	// NeedsUncompressed marks systems whose cores cannot stream from
	// zip archives; their content is extracted to scratch before launch.
	NeedsUncompressed bool
	// DefaultOptions are per-system core options merged under caller
	// overrides when writing the options file.
	DefaultOptions map[string]string
}

var systems = map[string]System{
	"nes": {
		ID:         "nes",
		Name:       "Nintendo Entertainment System",
		Core:       "fceumm_libretro.so",
		Extensions: []string{".nes", ".fds"},
	},
	"snes": {
		ID:         "snes",
		Name:       "Super Nintendo",
		Core:       "snes9x_libretro.so",
		Extensions: []string{".sfc", ".smc"},
	},
	"gb": {
		ID:         "gb",
		Name:       "Game Boy / Game Boy Color",
		Core:       "gambatte_libretro.so",
		Extensions: []string{".gbc", ".gb"},
		DefaultOptions: map[string]string{
			"gambatte_gb_colorization": "auto",
		},
	},
	"gba": {
		ID:         "gba",
		Name:       "Game Boy Advance",
		Core:       "mgba_libretro.so",
		Extensions: []string{".gba"},
	},
	"genesis": {
		ID:         "genesis",
		Name:       "Sega Genesis / Mega Drive",
		Core:       "genesis_plus_gx_libretro.so",
		Extensions: []string{".md", ".gen", ".bin"},
	},
	"n64": {
		ID:                "n64",
		Name:              "Nintendo 64",
		Core:              "mupen64plus_next_libretro.so",
		Extensions:        []string{".z64", ".n64", ".v64"},
		NeedsUncompressed: true,
		DefaultOptions: map[string]string{
			"mupen64plus-43screensize": "640x480",
			"mupen64plus-rsp-plugin":   "hle",
		},
	},
	"psx": {
		ID:                "psx",
		Name:              "PlayStation",
		Core:              "pcsx_rearmed_libretro.so",
		Extensions:        []string{".cue", ".chd", ".pbp", ".bin"},
		NeedsUncompressed: true,
		DefaultOptions: map[string]string{
			"pcsx_rearmed_drc": "enabled",
		},
	},
}

// SystemByID looks up a supported system.
func SystemByID(id string) (System, bool) {
	s, ok := systems[id]
	return s, ok
}

// Systems returns all supported systems sorted by ID.
func Systems() []System {
	out := make([]System, 0, len(systems))
	for _, s := range systems {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
