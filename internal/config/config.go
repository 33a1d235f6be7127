// Package config loads the agent configuration: drives with their firmware
// capabilities, directories and listen port.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"discburn-agent/internal/drive"
	"discburn-agent/internal/track"
)

// DriveConfig describes one drive in the configuration file.
type DriveConfig struct {
	Name          string   `yaml:"name"`
	Device        string   `yaml:"device"`
	WritableMedia []string `yaml:"writable_media"`
	Medium        []string `yaml:"medium"`

	CanTAO         bool `yaml:"can_tao"`
	CanSAO         bool `yaml:"can_sao"`
	CanRawDAO      bool `yaml:"can_raw_dao"`
	CanBurnFree    bool `yaml:"can_burnfree"`
	CanDummyForSAO bool `yaml:"can_dummy_sao"`
	CanDummyForTAO bool `yaml:"can_dummy_tao"`
}

// Config is the agent configuration file.
type Config struct {
	Port         int           `yaml:"port"`
	JobsDir      string        `yaml:"jobs_dir"`
	ManifestsDir string        `yaml:"manifests_dir"`
	TmpDir       string        `yaml:"tmp_dir"`
	SettingsDB   string        `yaml:"settings_db"`
	DriveConfigs []DriveConfig `yaml:"drives"`
}

// Defaults fill the holes a minimal file leaves.
const (
	DefaultPort    = 2680
	DefaultJobsDir = "/var/lib/discburn/jobs"
	DefaultDB      = "/var/lib/discburn/settings.db"
)

// Load reads a configuration file. A missing path yields the
// zero configuration with defaults applied.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.JobsDir == "" {
		cfg.JobsDir = DefaultJobsDir
	}
	if cfg.SettingsDB == "" {
		cfg.SettingsDB = DefaultDB
	}

	return cfg, nil
}

var mediaNames = map[string]track.Media{
	"cd":          track.MediaCD,
	"dvd":         track.MediaDVD,
	"dvd+":        track.MediaDVDPlus,
	"bd":          track.MediaBD,
	"sequential":  track.MediaSequential,
	"restricted":  track.MediaRestricted,
	"rom":         track.MediaROM,
	"writable":    track.MediaWritable,
	"rewritable":  track.MediaRewritable,
	"readonly":    track.MediaReadOnly,
	"blank":       track.MediaBlank,
	"appendable":  track.MediaAppendable,
	"closed":      track.MediaClosed,
	"unformatted": track.MediaUnformatted,
	"audio":       track.MediaHasAudio,
	"data":        track.MediaHasData,
}

// ParseMedia converts configuration media names into a mask.
func ParseMedia(names []string) (track.Media, error) {
	media := track.MediaNone
	for _, name := range names {
		bit, ok := mediaNames[name]
		if !ok {
			return track.MediaNone, fmt.Errorf("unknown media name %q", name)
		}
		media |= bit
	}
	return media, nil
}

// Drives converts the configured drives into the runtime model, keyed by
// name.
func (c *Config) Drives() (map[string]*drive.Drive, error) {
	drives := make(map[string]*drive.Drive, len(c.DriveConfigs))
	for _, dc := range c.DriveConfigs {
		if dc.Name == "" || dc.Device == "" {
			return nil, fmt.Errorf("drive needs both name and device")
		}

		writable, err := ParseMedia(dc.WritableMedia)
		if err != nil {
			return nil, fmt.Errorf("drive %s: %w", dc.Name, err)
		}
		medium, err := ParseMedia(dc.Medium)
		if err != nil {
			return nil, fmt.Errorf("drive %s: %w", dc.Name, err)
		}

		drives[dc.Name] = &drive.Drive{
			Name:           dc.Name,
			Device:         dc.Device,
			WritableMedia:  writable,
			Medium:         medium,
			CanTAO:         dc.CanTAO,
			CanSAO:         dc.CanSAO,
			CanRawDAO:      dc.CanRawDAO,
			CanBurnFree:    dc.CanBurnFree,
			CanDummyForSAO: dc.CanDummyForSAO,
			CanDummyForTAO: dc.CanDummyForTAO,
		}
	}
	return drives, nil
}
