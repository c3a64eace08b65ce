package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// sectionComments documents each top-level section of a generated file.
var sectionComments = map[string]string{
	"logging":    "Logging configuration",
	"store":      "Object store. Type is one of s3, badger, memory.\nS3 credentials may come from S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY and S3_BUCKET instead.",
	"filesystem": "Namespace behavior. clear_on_start empties the store before every mount.",
	"mount":      "FUSE mount options. The mount point can also be passed with --mount.",
	"metrics":    "Prometheus metrics endpoint",
	"gc":         "Background removal of objects no directory references (left by interrupted renames)",
}

// InitConfig writes a sample configuration file to the default location.
//
// Returns the path of the written file.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path. An existing
// file is only replaced when force is set.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	// The file may end up holding credentials
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML with a header and a comment
// above each section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	// doc is a mapping of section name / section value pairs
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if comment, ok := sectionComments[doc.Content[i].Value]; ok {
			doc.Content[i].HeadComment = comment
		}
	}

	var b strings.Builder
	b.WriteString("# bucketfs Configuration File\n")
	b.WriteString("#\n")
	b.WriteString("# Environment variables override these values (BUCKETFS_LOGGING_LEVEL=DEBUG).\n\n")

	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	return b.String(), nil
}
