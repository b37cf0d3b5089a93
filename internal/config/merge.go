package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyModel      = "model"
	keyProcessing = "processing"
	keyProgress   = "progress"
	keyOutput     = "output"
	keyCache      = "cache"
	keyLogging    = "logging"
	keyServer     = "server"
)

// knownTopLevelKeys lists the YAML keys that correspond to exported Config fields.
// Keys not in this list are silently ignored during merge.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var knownTopLevelKeys = map[string]bool{
	keyModel:      true,
	keyProcessing: true,
	keyProgress:   true,
	keyOutput:     true,
	keyCache:      true,
	keyLogging:    true,
	keyServer:     true,
}

// ShallowMergeYAML loads a YAML file and merges its top-level sections onto
// the target Config. Sections absent from the overlay are left unchanged.
// Within a present section, only the fields the overlay sets are replaced.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing overlay YAML from %s: %w", overlayPath, err)
	}

	// Empty or comment-only file: nothing to merge.
	if len(overlay) == 0 {
		return nil
	}

	for key, node := range overlay {
		if !knownTopLevelKeys[key] {
			continue
		}
		if err = decodeSection(target, key, &node); err != nil {
			return fmt.Errorf("applying overlay section %q: %w", key, err)
		}
	}

	return nil
}

// decodeSection decodes node onto a copy of the matching section of target
// and stores the copy back only if decoding succeeds.
func decodeSection(target *Config, key string, node *yaml.Node) error {
	switch key {
	case keyModel:
		v := target.Model
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Model = v
	case keyProcessing:
		v := target.Processing
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Processing = v
	case keyProgress:
		v := target.Progress
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Progress = v
	case keyOutput:
		v := target.Output
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Output = v
	case keyCache:
		v := target.Cache
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Cache = v
	case keyLogging:
		v := target.Logging
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Logging = v
	case keyServer:
		v := target.Server
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Server = v
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
