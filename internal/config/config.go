package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

type Config struct {
	Scene  Scene  `toml:"scene"`
	Viewer Viewer `toml:"viewer"`
	Server Server `toml:"server"`
	Path   string `toml:"-"`
}

// Scene holds every pixel size, speed and timing the office engine uses.
// Sizes are scene pixels; speeds are per frame.
type Scene struct {
	Layout Layout `toml:"layout"`

	CeoSpeed  float64 `toml:"ceo_speed"`
	CeoMargin float64 `toml:"ceo_margin"`

	ParticleCadence int     `toml:"particle_cadence"`
	ParticleChance  float64 `toml:"particle_chance"`
	ParticleMaxAge  int     `toml:"particle_max_age"`
	ParticleRise    float64 `toml:"particle_rise"`

	SwayAmplitude  float64 `toml:"sway_amplitude"`
	SwayFrequency  float64 `toml:"sway_frequency"`
	PulseFrequency float64 `toml:"pulse_frequency"`

	ThrowSpeed    float64  `toml:"throw_speed"`
	ThrowArc      float64  `toml:"throw_arc"`
	WalkSpeed     float64  `toml:"walk_speed"`
	WalkBounce    float64  `toml:"walk_bounce"`
	WalkSteps     float64  `toml:"walk_steps"`
	SeatBob       float64  `toml:"seat_bob"`
	MeetingHold   Duration `toml:"meeting_hold"`
	SpeechTimeout Duration `toml:"speech_timeout"`

	TaskTitleMax    int      `toml:"task_title_max"`
	ResizeThreshold float64  `toml:"resize_threshold"`
	ResizeDebounce  Duration `toml:"resize_debounce"`
	KeyHold         Duration `toml:"key_hold"`
	SpriteCount     int      `toml:"sprite_count"`
}

type Layout struct {
	MinWidth        float64 `toml:"min_width"`
	Gap             float64 `toml:"gap"`
	RoomPadding     float64 `toml:"room_padding"`
	RoomHeader      float64 `toml:"room_header"`
	SlotWidth       float64 `toml:"slot_width"`
	SlotHeight      float64 `toml:"slot_height"`
	AgentsPerRow    int     `toml:"agents_per_row"`
	MaxColumns      int     `toml:"max_columns"`
	CeoZoneHeight   float64 `toml:"ceo_zone_height"`
	BreakRoomHeight float64 `toml:"break_room_height"`
	BreakSpacing    float64 `toml:"break_spacing"`
	MeetingSeats    int     `toml:"meeting_seats"`
}

type Viewer struct {
	ServerAddr   string   `toml:"server_addr" env:"AGENT_OFFICE_SERVER_ADDR"`
	CellWidth    float64  `toml:"cell_width" env:"AGENT_OFFICE_CELL_WIDTH"`
	CellHeight   float64  `toml:"cell_height" env:"AGENT_OFFICE_CELL_HEIGHT"`
	FPS          int      `toml:"fps" env:"AGENT_OFFICE_FPS"`
	PollInterval Duration `toml:"poll_interval" env:"AGENT_OFFICE_POLL_INTERVAL"`
	AssetsDir    string   `toml:"assets_dir" env:"AGENT_OFFICE_ASSETS_DIR"`
	RemoteAssets bool     `toml:"remote_assets" env:"AGENT_OFFICE_REMOTE_ASSETS"`
	LogFile      string   `toml:"log_file" env:"AGENT_OFFICE_LOG_FILE"`
}

type Server struct {
	Addr              string   `toml:"addr" env:"AGENT_OFFICE_ADDR"`
	DBPath            string   `toml:"db_path" env:"AGENT_OFFICE_DB"`
	Locale            string   `toml:"locale" env:"AGENT_OFFICE_LOCALE"`
	SimulatorInterval Duration `toml:"simulator_interval" env:"AGENT_OFFICE_SIM_INTERVAL"`
	BreakSchedule     string   `toml:"break_schedule" env:"AGENT_OFFICE_BREAK_SCHEDULE"`
	BreakLength       Duration `toml:"break_length" env:"AGENT_OFFICE_BREAK_LENGTH"`
	SpeakDelay        Duration `toml:"speak_delay" env:"AGENT_OFFICE_SPEAK_DELAY"`
	StreamInterval    Duration `toml:"stream_interval" env:"AGENT_OFFICE_STREAM_INTERVAL"`
}

// Duration decodes "250ms" style strings from TOML and env.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() Config {
	return Config{
		Scene: Scene{
			Layout: Layout{
				MinWidth:        360,
				Gap:             16,
				RoomPadding:     12,
				RoomHeader:      32,
				SlotWidth:       96,
				SlotHeight:      112,
				AgentsPerRow:    3,
				MaxColumns:      3,
				CeoZoneHeight:   128,
				BreakRoomHeight: 112,
				BreakSpacing:    64,
				MeetingSeats:    6,
			},
			CeoSpeed:        3,
			CeoMargin:       12,
			ParticleCadence: 12,
			ParticleChance:  0.35,
			ParticleMaxAge:  40,
			ParticleRise:    0.6,
			SwayAmplitude:   2.5,
			SwayFrequency:   0.05,
			PulseFrequency:  0.12,
			ThrowSpeed:      0.018,
			ThrowArc:        48,
			WalkSpeed:       0.006,
			WalkBounce:      3,
			WalkSteps:       14,
			SeatBob:         1.5,
			MeetingHold:     Duration{8 * time.Second},
			SpeechTimeout:   Duration{2200 * time.Millisecond},
			TaskTitleMax:    16,
			ResizeThreshold: 10,
			ResizeDebounce:  Duration{120 * time.Millisecond},
			KeyHold:         Duration{180 * time.Millisecond},
			SpriteCount:     4,
		},
		Viewer: Viewer{
			ServerAddr:   "http://localhost:8093",
			CellWidth:    8,
			CellHeight:   16,
			FPS:          30,
			PollInterval: Duration{2 * time.Second},
			LogFile:      "data/office.log",
		},
		Server: Server{
			Addr:              ":8093",
			DBPath:            "data/agent_office.db",
			Locale:            "en",
			SimulatorInterval: Duration{3 * time.Second},
			BreakSchedule:     "0 12 * * *",
			BreakLength:       Duration{20 * time.Second},
			SpeakDelay:        Duration{7 * time.Second},
			StreamInterval:    Duration{time.Second},
		},
	}
}

// Load reads path (or the default location) over Default() and applies
// AGENT_OFFICE_* environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	resolved := path
	if resolved == "" {
		resolved = defaultConfigPath()
	}
	if strings.HasPrefix(resolved, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed := strings.TrimPrefix(resolved, "~")
		trimmed = strings.TrimPrefix(trimmed, "\\")
		trimmed = strings.TrimPrefix(trimmed, "/")
		resolved = filepath.Join(home, trimmed)
	}
	resolved = filepath.Clean(resolved)

	bytes, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config file %s: %w", resolved, err)
	default:
		if _, err := toml.Decode(string(bytes), &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config file: %w", err)
		}
		cfg.Path = resolved
	}

	if err := env.Parse(&cfg.Viewer); err != nil {
		return Config{}, fmt.Errorf("parse viewer env: %w", err)
	}
	if err := env.Parse(&cfg.Server); err != nil {
		return Config{}, fmt.Errorf("parse server env: %w", err)
	}
	return cfg, nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agent_office/config.toml"
	}
	return filepath.Join(home, ".agent_office", "config.toml")
}
