package config

import (
	"context"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const redacted = "[REDACTED]"

// Load builds the configuration from defaults overlaid with CREDPORTAL_*
// environment variables, then validates it. Unknown variables are ignored.
func Load(_ context.Context) (*Config, error) {
	k, err := fromStruct(Default())
	if err != nil {
		return nil, err
	}
	paths := envPaths()
	overlay := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(name, value string) (string, any) {
			return paths[name], value
		},
	})
	if err := k.Load(overlay, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := new(Config)
	if err := k.UnmarshalWithConf("", cfg, unmarshalConf(cfg)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Flatten renders cfg as dotted paths mapped to printable values. Sensitive
// settings that hold a value print as [REDACTED].
func Flatten(cfg *Config) (map[string]string, error) {
	k, err := fromStruct(cfg)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(Settings()))
	for _, s := range Settings() {
		v := fmt.Sprint(k.Get(s.Path))
		if s.Sensitive && v != "" {
			v = redacted
		}
		out[s.Path] = v
	}
	return out, nil
}

func fromStruct(cfg *Config) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	return k, nil
}

func unmarshalConf(out *Config) koanf.UnmarshalConf {
	return koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           out,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				decodeSensitive,
			),
		},
	}
}

func decodeSensitive(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != sensitiveType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	}
	return data, nil
}

// Validate checks struct tag constraints on cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
