// Package flagx locates and decodes the server configuration file named on
// the command line, before the full flag set is parsed.
package flagx

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for config files that are neither JSON
// nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported config file format")

// Config file formats, chosen by extension.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FilterArgs keeps only the allowed flags from args. A flag may carry its
// value after '=' (--config=conf.yaml) or in the next argument
// (-c conf.yaml); a next argument starting with '-' is never taken as a
// value. The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, hasValue := strings.Cut(arg, "="); hasValue && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigFileFlag returns the path given with -c or -config in os.Args, or
// "" when neither is present. Other flags are ignored so the server flag
// set can still be parsed afterwards.
func ConfigFileFlag() string {
	return configPath(os.Args[1:])
}

func configPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "Path to config file (JSON or YAML)")
	fs.StringVar(&path, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--config"}))

	return path
}

// FormatOf picks the decoder for path: .yaml and .yml are YAML, .json and
// extensionless files are JSON.
func FormatOf(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// DecodeFile reads path and decodes it into dst using FormatOf.
func DecodeFile(path string, dst any) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, dst)
	default:
		err = json.Unmarshal(data, dst)
	}
	if err != nil {
		return fmt.Errorf("error decoding %s: %w", path, err)
	}
	return nil
}

// LoadConfigFile decodes the file named by -c/-config into dst. It reports
// whether a file was named at all.
func LoadConfigFile(dst any) (bool, error) {
	path := ConfigFileFlag()
	if path == "" {
		return false, nil
	}
	return true, DecodeFile(path, dst)
}
