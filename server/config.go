package ringfleet

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	Rt "github.com/maroda/ringfleet/types"
	"gopkg.in/yaml.v3"
)

// ConfigFile is the optional tuning file, JSON or YAML.
// Zero values keep the built-in default.
type ConfigFile struct {
	Pattern           string `json:"pattern" yaml:"pattern"`
	Strategy          string `json:"strategy" yaml:"strategy"`
	RingStyle         string `json:"ringStyle" yaml:"ringStyle"`
	RingsMin          int    `json:"ringsMin" yaml:"ringsMin"`
	RingsMax          int    `json:"ringsMax" yaml:"ringsMax"`
	AnswerProbability *int   `json:"answerProbability" yaml:"answerProbability"`
	CutShortMinPct    int    `json:"cutShortMinPct" yaml:"cutShortMinPct"`
	CutShortMaxPct    int    `json:"cutShortMaxPct" yaml:"cutShortMaxPct"`
	RingOnMs          int    `json:"ringOnMs" yaml:"ringOnMs"`
	RingOffMs         int    `json:"ringOffMs" yaml:"ringOffMs"`
	SequentialDelayMs int    `json:"sequentialDelayMs" yaml:"sequentialDelayMs"`
	WaveSpeed         int    `json:"waveSpeed" yaml:"waveSpeed"`
	RandomIntervalMs  int    `json:"randomIntervalMs" yaml:"randomIntervalMs"`
	BurstWindowSecs   int    `json:"burstWindowSecs" yaml:"burstWindowSecs"`
	QuietWindowSecs   int    `json:"quietWindowSecs" yaml:"quietWindowSecs"`
	ActiveLow         bool   `json:"activeLow" yaml:"activeLow"`
}

// LoadConfigFileName pulls a given filename config off local disk
// Validation is performed on the file before opening
func LoadConfigFileName(filename string) (*ConfigFile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// validation
	err = validateLoad(file)
	if err != nil {
		slog.Error("Validation failed", slog.Any("Error", err))
		return nil, err
	}

	return LoadConfig(file)
}

func validateLoad(file *os.File) error {
	info, err := file.Stat()
	if err != nil {
		slog.Error("could not stat file")
		return err
	}

	if info.Size() == 0 {
		slog.Error("file is empty")
		return errors.New("file is empty")
	}

	return nil
}

// LoadConfig decodes by extension, .yaml/.yml or JSON for anything else
func LoadConfig(file *os.File) (*ConfigFile, error) {
	var config ConfigFile

	switch strings.ToLower(filepath.Ext(file.Name())) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(&config); err != nil {
			slog.Error("could not decode yaml file")
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&config); err != nil {
			slog.Error("could not decode file")
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}

	return &config, nil
}

// Policy lays the file over the defaults, then clamps
func (cf *ConfigFile) Policy() Policy {
	p := DefaultPolicy()
	if cf == nil {
		return p
	}

	switch strings.ToLower(cf.RingStyle) {
	case "alternate", "uk":
		p.Style = Rt.StyleAlternate
	case "mixed":
		p.Style = Rt.StyleMixed
	}
	if cf.RingsMin > 0 {
		p.RingsMin = cf.RingsMin
	}
	if cf.RingsMax > 0 {
		p.RingsMax = cf.RingsMax
	}
	if cf.AnswerProbability != nil {
		p.AnswerProbability = *cf.AnswerProbability
	}
	if cf.CutShortMinPct > 0 {
		p.CutShortMinPct = cf.CutShortMinPct
	}
	if cf.CutShortMaxPct > 0 {
		p.CutShortMaxPct = cf.CutShortMaxPct
	}
	if cf.RingOnMs > 0 {
		p.RingOn = time.Duration(cf.RingOnMs) * time.Millisecond
	}
	if cf.RingOffMs > 0 {
		p.RingOff = time.Duration(cf.RingOffMs) * time.Millisecond
	}
	if cf.SequentialDelayMs > 0 {
		p.SequentialDelay = time.Duration(cf.SequentialDelayMs) * time.Millisecond
	}
	if cf.WaveSpeed > 0 {
		p.WaveSpeed = cf.WaveSpeed
	}
	if cf.RandomIntervalMs > 0 {
		p.RandomInterval = time.Duration(cf.RandomIntervalMs) * time.Millisecond
	}
	if cf.BurstWindowSecs > 0 {
		p.BurstWindow = time.Duration(cf.BurstWindowSecs) * time.Second
	}
	if cf.QuietWindowSecs > 0 {
		p.QuietWindow = time.Duration(cf.QuietWindowSecs) * time.Second
	}
	return p.Clamp()
}

// Mode reads the pattern name, unknown names fall back to Random
func (cf *ConfigFile) Mode() Rt.PatternMode {
	if cf == nil || cf.Pattern == "" {
		return Rt.PatternRandom
	}
	m, ok := ParseMode(cf.Pattern)
	if !ok {
		slog.Warn("Unknown pattern in config, using RANDOM", slog.String("pattern", cf.Pattern))
	}
	return m
}
