// Package config loads the YAML policy file used by the devcert command.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/wolfeidau/devcert/internal/authority"
	"github.com/wolfeidau/devcert/internal/pki"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a policy file holds unusable values.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the certificate policy.
type Config struct {
	// Distinguished name of the self-signed issuer
	IssuerName string `yaml:"issuer_name" json:"issuer_name"`
	// Distinguished name of the leaf certificate
	SubjectName string `yaml:"subject_name" json:"subject_name"`
	// RSA modulus size for both key pairs
	KeyBits int `yaml:"key_bits" json:"key_bits"`
	// Certificate lifetime in days from UTC midnight
	ValidityDays int `yaml:"validity_days" json:"validity_days"`
	// PKCS#12 passphrase, empty for development containers
	Passphrase string `yaml:"passphrase" json:"passphrase"`
	// Directory receiving generated artifacts
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	// AWS KMS key used by issue when no CA container is given
	KMSKeyID string `yaml:"kms_key_id,omitempty" json:"kms_key_id,omitempty"`
}

// DefaultConfig returns the policy used when no file is given.
func DefaultConfig() Config {
	return Config{
		IssuerName:   authority.DefaultIssuerName,
		SubjectName:  authority.DefaultSubjectName,
		KeyBits:      pki.DefaultKeyBits,
		ValidityDays: pki.DefaultValidityDays,
		OutputDir:    ".",
	}
}

// Load reads a policy file on top of DefaultConfig. Keys missing from the file
// keep their default values.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: failed to parse %s: %w", ErrInvalidConfig, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the policy values.
func (c Config) Validate() error {
	if !slices.Contains(pki.SupportedKeyBits, c.KeyBits) {
		return fmt.Errorf("%w: key_bits must be one of %v, got %d", ErrInvalidConfig, pki.SupportedKeyBits, c.KeyBits)
	}

	if c.ValidityDays <= 0 {
		return fmt.Errorf("%w: validity_days must be positive, got %d", ErrInvalidConfig, c.ValidityDays)
	}

	for field, dn := range map[string]string{"issuer_name": c.IssuerName, "subject_name": c.SubjectName} {
		if dn == "" {
			continue
		}
		if _, err := pki.ParseName(dn); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, field, err)
		}
	}

	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir is required", ErrInvalidConfig)
	}

	return nil
}
