// Package config loads state machine host configuration from struct tag
// defaults, YAML/JSON files and environment variables. Values are resolved
// in priority order:
//
//	envDefault struct tags  (lowest priority)
//	YAML/JSON config file  (medium priority)
//	Environment variables  (highest priority)
//
// # Struct Tags
//
//   - `env:"VAR_NAME"` maps the field to an environment variable
//   - `envDefault:"value"` sets a default when the field is zero-valued
//   - `required:"true"` fails validation if the field remains zero after loading
//
// Fields also need `yaml` or `json` tags for file-based loading. Nested
// structs are traversed; a nested struct's env tag is prepended to its
// children's variable names.
//
// # Usage
//
//	type HostConfig struct {
//	    States       []string      `env:"STATES" yaml:"states" required:"true"`
//	    Initial      string        `env:"INITIAL_STATE" yaml:"initial" required:"true"`
//	    TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"100ms" yaml:"tick_interval"`
//	}
//
//	cfg := config.MustLoad[HostConfig](
//	    config.New().WithEnvPrefix("STATEHOST").WithFile("statehost.yaml"),
//	)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
)

// durationType distinguishes time.Duration from plain int64 fields.
var durationType = reflect.TypeOf(time.Duration(0))

// LookupFunc resolves an environment variable. It has the signature of
// [os.LookupEnv].
type LookupFunc func(key string) (string, bool)

// Loader builds and executes layered configuration loading. Use [New] to
// create one.
//
// Loader is not safe for concurrent use.
type Loader struct {
	envPrefix string
	filePath  string
	lookup    LookupFunc
}

// New creates a [Loader] that reads environment variables through
// [os.LookupEnv], with no prefix and no file.
func New() *Loader {
	return &Loader{lookup: os.LookupEnv}
}

// WithEnvPrefix sets a prefix prepended (with an underscore) to every
// variable name. The prefix is uppercased; an empty prefix disables it.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets the path of a YAML (.yaml, .yml) or JSON (.json) file.
// A missing file is not an error. Paths containing ".." are rejected.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// WithLookup replaces the environment lookup. A nil lookup restores
// [os.LookupEnv].
func (l *Loader) WithLookup(lookup LookupFunc) *Loader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	l.lookup = lookup
	return l
}

// Load populates cfg, a non-nil pointer to a struct, and validates it.
//
// Errors:
//   - [sserr.CodeConfiguration] if cfg is not a struct pointer or a value
//     cannot be parsed into its field
//   - [sserr.CodeConfigurationFile] if the file cannot be read or parsed
//   - [sserr.CodeValidationRequired] if a required field is empty
//   - [sserr.CodeValidation] (or the Validator's own code) if the struct's
//     [Validator] rejects it
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return sserr.Newf(sserr.CodeConfiguration,
			"config: Load requires a non-nil pointer to a struct, got %T", cfg)
	}
	rv = rv.Elem()

	if err := eachField(rv, "", "", applyDefault); err != nil {
		return err
	}
	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}
	if err := eachField(rv, l.envPrefix, "", l.applyEnv); err != nil {
		return err
	}
	return validate(cfg, rv)
}

// LoadAs creates a zero T, loads into it and returns it.
func LoadAs[T any](l *Loader) (T, error) {
	var cfg T
	err := l.Load(&cfg)
	return cfg, err
}

// MustLoad is [LoadAs] for program startup: it panics if loading or
// validation fails.
func MustLoad[T any](l *Loader) T {
	cfg, err := LoadAs[T](l)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return sserr.New(sserr.CodeConfigurationFile,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sserr.Wrapf(err, sserr.CodeConfigurationFile,
			"config: failed to read file %q", l.filePath)
	}

	var unmarshal func([]byte, any) error
	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	case ".json":
		unmarshal = json.Unmarshal
	default:
		return sserr.Newf(sserr.CodeConfigurationFile,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}

	if err := unmarshal(data, cfg); err != nil {
		return sserr.Wrapf(err, sserr.CodeConfigurationFile,
			"config: failed to parse file %q", l.filePath)
	}
	return nil
}

// field is one settable leaf field visited by eachField.
type field struct {
	value  reflect.Value
	tag    reflect.StructTag
	path   string // dotted Go path, e.g. "Redis.Addr"
	envKey string // fully prefixed variable name, empty if untagged
}

// eachField visits every settable non-struct field of rv depth-first.
// time.Duration is a leaf.
func eachField(rv reflect.Value, envPrefix, path string, visit func(field) error) error {
	rt := rv.Type()
	for i := range rt.NumField() {
		fv, sf := rv.Field(i), rt.Field(i)
		if !fv.CanSet() {
			continue
		}

		fieldPath := joinPath(path, sf.Name, ".")
		envTag := sf.Tag.Get("env")

		if fv.Kind() == reflect.Struct && sf.Type != durationType {
			nested := envPrefix
			if envTag != "" {
				nested = joinPath(envPrefix, envTag, "_")
			}
			if err := eachField(fv, nested, fieldPath, visit); err != nil {
				return err
			}
			continue
		}

		f := field{value: fv, tag: sf.Tag, path: fieldPath}
		if envTag != "" {
			f.envKey = joinPath(envPrefix, envTag, "_")
		}
		if err := visit(f); err != nil {
			return err
		}
	}
	return nil
}

func joinPath(prefix, name, sep string) string {
	if prefix == "" {
		return name
	}
	return prefix + sep + name
}

func applyDefault(f field) error {
	def, ok := f.tag.Lookup("envDefault")
	if !ok || !f.value.IsZero() {
		return nil
	}
	if err := setField(f.value, def); err != nil {
		return sserr.Wrapf(err, sserr.CodeConfiguration,
			"config: invalid default for field %q", f.path)
	}
	return nil
}

func (l *Loader) applyEnv(f field) error {
	if f.envKey == "" {
		return nil
	}
	val, ok := l.lookup(f.envKey)
	if !ok {
		return nil
	}
	if err := setField(f.value, val); err != nil {
		return sserr.Wrapf(err, sserr.CodeConfiguration,
			"config: invalid value for field %q from env var %q", f.path, f.envKey)
	}
	return nil
}

// setField parses value into v. Supported kinds: string, bool, signed and
// unsigned integers, floats, time.Duration and string slices
// (comma-separated, whitespace-trimmed, empty items dropped).
func setField(v reflect.Value, value string) error {
	if v.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		v.SetInt(int64(d))
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse unsigned integer %q: %w", value, err)
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(value, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse float %q: %w", value, err)
		}
		v.SetFloat(n)
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", v.Type().Elem().Kind())
		}
		var parts []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			v.Set(reflect.Zero(v.Type()))
			return nil
		}
		// MakeSlice keeps named slice types settable.
		slice := reflect.MakeSlice(v.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(p)
		}
		v.Set(slice)
	default:
		return fmt.Errorf("unsupported field type %s", v.Kind())
	}
	return nil
}
