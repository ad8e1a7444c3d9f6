package secrets

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Allowlist contains content regex patterns excluded from secret
// detection, for example seeded demo credentials or well-known test keys.
type Allowlist struct {
	Regexes []string
}

// LoadAllowlists loads and merges the given allowlist TOML files using
// union logic. Missing files are silently skipped so operators can point
// at a conventional path without creating it; files that exist but fail
// to parse or contain invalid patterns return errors.
func LoadAllowlists(paths ...string) (*Allowlist, error) {
	merged := &Allowlist{Regexes: []string{}}

	for _, path := range paths {
		if path == "" {
			continue
		}
		loaded, err := loadTOML(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		merged.Regexes = append(merged.Regexes, loaded.Regexes...)
	}

	return merged, nil
}

// loadTOML loads and validates a single allowlist file. Expected shape:
//
//	[allowlist]
//	regexes = ['''DEMO_API_KEY''', '''example\.com''']
func loadTOML(path string) (*Allowlist, error) {
	var config struct {
		Allowlist struct {
			Regexes []string
		}
	}

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	// Fail fast on bad patterns so the error names the file, not a
	// detection deep in the ingest path.
	for _, pattern := range config.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: pattern %q in %s: %v", ErrInvalidRegex, pattern, path, err)
		}
	}

	return &Allowlist{Regexes: config.Allowlist.Regexes}, nil
}
