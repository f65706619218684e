package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/shaiso/Provisio/internal/domain"
)

// ErrInvalidPayload — стартовая конфигурация не прошла проверку.
var ErrInvalidPayload = errors.New("invalid startup payload")

// LoadPayload читает стартовую конфигурацию из файла.
// Файлы .toml разбираются как TOML, остальные — как JSON.
func LoadPayload(path string) (domain.StartupPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.StartupPayload{}, fmt.Errorf("read payload: %w", err)
	}

	format := "json"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}
	return ParsePayload(data, format)
}

// ParsePayload разбирает и проверяет стартовую конфигурацию.
func ParsePayload(data []byte, format string) (domain.StartupPayload, error) {
	var p domain.StartupPayload

	switch format {
	case "toml":
		if err := toml.Unmarshal(data, &p); err != nil {
			return domain.StartupPayload{}, fmt.Errorf("%w: decode toml: %v", ErrInvalidPayload, err)
		}
	case "json":
		if err := json.Unmarshal(data, &p); err != nil {
			return domain.StartupPayload{}, fmt.Errorf("%w: decode json: %v", ErrInvalidPayload, err)
		}
	default:
		return domain.StartupPayload{}, fmt.Errorf("%w: unsupported format %q", ErrInvalidPayload, format)
	}

	if err := ValidatePayload(&p); err != nil {
		return domain.StartupPayload{}, err
	}
	return p, nil
}

// ValidatePayload проверяет шаги и идентификаторы.
//
// Идентификаторы очередей без метаданных допустимы: мастер их пропускает.
func ValidatePayload(p *domain.StartupPayload) error {
	if p.CurrentStep != "" && !p.CurrentStep.IsValid() {
		return fmt.Errorf("%w: current_step: %w", ErrInvalidPayload, unknownStep(p.CurrentStep))
	}

	for step := range p.Copy.Headlines {
		if !step.IsValid() {
			return fmt.Errorf("%w: headlines: %w", ErrInvalidPayload, unknownStep(step))
		}
	}

	for name, ids := range map[string][]string{
		"install":  p.Install,
		"activate": p.Activate,
		"features": p.Features,
	} {
		for i, id := range ids {
			if strings.TrimSpace(id) == "" {
				return fmt.Errorf("%w: %s[%d]: empty id", ErrInvalidPayload, name, i)
			}
		}
	}

	if p.Campaign.Goal < 0 {
		return fmt.Errorf("%w: campaign goal must not be negative", ErrInvalidPayload)
	}
	return nil
}

func unknownStep(s domain.Step) error {
	_, err := domain.ParseStep(string(s))
	return err
}
