package application

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// ProfileLoader parses, validates, and caches evaluation profiles from
// YAML. Identical profile content is compiled once: loads are keyed by the
// SHA-256 of the normalized configuration, and concurrent loads of the
// same content are collapsed through singleflight.
type ProfileLoader struct {
	// validator checks struct tags plus the custom modelref and langtag
	// rules.
	validator *validator.Validate

	// cache stores normalized profiles by content hash. Cached profiles
	// are returned by value, so callers can adjust their copy freely.
	cache   map[string]EvaluationProfile
	cacheMu sync.RWMutex

	// sf collapses concurrent loads of identical content.
	sf singleflight.Group
}

// NewProfileLoader creates a loader with the custom validators registered
// and an empty cache.
func NewProfileLoader() (*ProfileLoader, error) {
	v, err := newProfileValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &ProfileLoader{
		validator: v,
		cache:     make(map[string]EvaluationProfile),
	}, nil
}

// LoadFromFile loads an evaluation profile from a YAML file.
func (pl *ProfileLoader) LoadFromFile(path string) (EvaluationProfile, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return EvaluationProfile{}, fmt.Errorf("failed to read file: %w", err)
	}

	return pl.load(data)
}

// LoadFromReader loads an evaluation profile from any reader.
func (pl *ProfileLoader) LoadFromReader(r io.Reader) (EvaluationProfile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return EvaluationProfile{}, fmt.Errorf("failed to read data: %w", err)
	}

	return pl.load(data)
}

// load parses and validates profile bytes, serving repeated content from
// the cache. Parsing happens before hashing so that formatting differences
// between semantically identical files share one cache entry.
func (pl *ProfileLoader) load(data []byte) (EvaluationProfile, error) {
	profile, err := pl.parseYAML(data)
	if err != nil {
		return EvaluationProfile{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	normalized := profile.withDefaults()

	hash, err := pl.profileHash(normalized)
	if err != nil {
		return EvaluationProfile{}, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := pl.sf.Do(hash, func() (any, error) {
		// Re-check the cache inside singleflight to close the race
		// between the cache read and group execution.
		if cached, ok := pl.cachedProfile(hash); ok {
			return cached, nil
		}

		if err := pl.validator.Struct(&normalized); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		pl.cacheProfile(hash, normalized)
		return normalized, nil
	})
	if err != nil {
		return EvaluationProfile{}, err
	}

	return v.(EvaluationProfile), nil
}

// parseYAML decodes profile bytes in strict mode so unknown fields fail
// loudly instead of being silently ignored.
func (pl *ProfileLoader) parseYAML(data []byte) (EvaluationProfile, error) {
	var profile EvaluationProfile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&profile); err != nil {
		// An empty file is an empty profile; every field has a default.
		if err == io.EOF {
			return EvaluationProfile{}, nil
		}
		return EvaluationProfile{}, fmt.Errorf("YAML decode failed: %w", err)
	}
	return profile, nil
}

// profileHash computes the SHA-256 of the normalized profile re-encoded
// with consistent formatting, so whitespace and key order do not split the
// cache.
func (pl *ProfileLoader) profileHash(profile EvaluationProfile) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(profile); err != nil {
		return "", fmt.Errorf("failed to encode profile for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

// cachedProfile retrieves a previously validated profile by content hash.
func (pl *ProfileLoader) cachedProfile(hash string) (EvaluationProfile, bool) {
	pl.cacheMu.RLock()
	defer pl.cacheMu.RUnlock()

	profile, ok := pl.cache[hash]
	return profile, ok
}

// cacheProfile stores a validated profile under its content hash.
func (pl *ProfileLoader) cacheProfile(hash string, profile EvaluationProfile) {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()

	pl.cache[hash] = profile
}

// ClearCache drops all cached profiles, forcing subsequent loads to
// revalidate from source.
func (pl *ProfileLoader) ClearCache() {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()

	pl.cache = make(map[string]EvaluationProfile)
}
