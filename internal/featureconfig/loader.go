package featureconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/aiqdata/internal/contracts"
)

// Load reads a YAML file and returns Features with raw bytes.
// Absent fields keep their Default() value.
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Features, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &contracts.ConfigurationError{Field: "feature_config", Message: err.Error()}
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes and validates YAML bytes
func Parse(data []byte) (*Features, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &contracts.ConfigurationError{Field: "feature_config", Message: err.Error()}
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault returns Default() when path is empty
func LoadOrDefault(path string) (*Features, []byte, error) {
	if path == "" {
		cfg := Default()
		return &cfg, nil, nil
	}
	return Load(path)
}

// Hash generates SHA256 hash from Features (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cfg *Features) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewRunSnapshot records the configuration a run was computed with
func NewRunSnapshot(cfg *Features, yamlData []byte) (*RunSnapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &RunSnapshot{
		ConfigHash: hash,
		ConfigYAML: string(yamlData),
		Version:    cfg.Version,
		CreatedAt:  time.Now(),
	}, nil
}
