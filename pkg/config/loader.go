// Package config loads configuration structs from environment variables,
// optional YAML/JSON files, and struct tag defaults. Values are resolved
// in priority order:
//
//	envDefault struct tags  (lowest)
//	YAML/JSON config file   (middle)
//	environment variables   (highest)
//
// Three struct tags control loading:
//
//   - `env:"VAR"` maps a field to an environment variable
//   - `envDefault:"value"` seeds the field when it starts zero
//   - `required:"true"` fails loading if the field is still zero
//
// File-based loading uses the ordinary `yaml`/`json` tags.
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

	apperr "github.com/talentforge/talentforge-api/pkg/errors"
)

// durationType distinguishes time.Duration fields from plain int64,
// since Duration's reflect kind is Int64 but needs time.ParseDuration.
var durationType = reflect.TypeOf(time.Duration(0))

// Validator is implemented by config structs that need checks beyond
// the `required` tag. Validate runs after all layers are applied.
type Validator interface {
	Validate() error
}

// Loader resolves configuration into a struct. Not safe for concurrent
// use; build one per Load call.
type Loader struct {
	envPrefix string
	filePath  string
}

// New returns a Loader that reads from environment variables only.
func New() *Loader {
	return &Loader{}
}

// WithEnvPrefix prepends prefix (uppercased, underscore-joined) to every
// env tag. WithEnvPrefix("TF") makes `env:"PORT"` read TF_PORT.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets an optional YAML (.yaml/.yml) or JSON (.json) config
// file. A missing file is not an error.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// Load populates cfg, which must be a non-nil pointer to a struct, then
// validates `required` tags and the Validator interface if implemented.
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return apperr.New(apperr.CodeInternal, "config: Load requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return apperr.New(apperr.CodeInternal, "config: Load requires a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}
	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}
	if err := applyEnv(rv, l.envPrefix); err != nil {
		return err
	}
	if err := checkRequired(rv, ""); err != nil {
		return err
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, isApp := apperr.AsError(err); isApp {
				return err
			}
			return apperr.Wrap(err, apperr.CodeValidationFailed, "config: validation failed")
		}
	}
	return nil
}

// MustLoad loads a T and panics on failure. For use in main, where an
// invalid configuration must stop startup.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return apperr.New(apperr.CodeInternal, "config: file path must not contain traversal sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperr.Wrapf(err, apperr.CodeInternal, "config: reading file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return apperr.Wrapf(err, apperr.CodeInternal, "config: parsing YAML file %q", l.filePath)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return apperr.Wrapf(err, apperr.CodeInternal, "config: parsing JSON file %q", l.filePath)
		}
	default:
		return apperr.Newf(apperr.CodeInternal, "config: unsupported file extension %q", ext)
	}
	return nil
}

// applyEnv walks the struct setting fields from env tags. A nested
// struct's own env tag joins the prefix chain for its children.
func applyEnv(rv reflect.Value, prefix string) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}

		envTag := sf.Tag.Get("env")
		if field.Kind() == reflect.Struct && sf.Type != durationType {
			nested := prefix
			if envTag != "" {
				if nested != "" {
					nested += "_" + envTag
				} else {
					nested = envTag
				}
			}
			if err := applyEnv(field, nested); err != nil {
				return err
			}
			continue
		}
		if envTag == "" {
			continue
		}

		key := envTag
		if prefix != "" {
			key = prefix + "_" + envTag
		}
		val, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := setField(field, val); err != nil {
			return apperr.Wrapf(err, apperr.CodeInternal,
				"config: setting field %q from env var %q", sf.Name, key)
		}
	}
	return nil
}

// applyDefaults seeds zero-valued fields from envDefault tags before the
// file and env layers run, so those layers can still override.
func applyDefaults(rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}
		tag := sf.Tag.Get("envDefault")
		if tag == "" || !field.IsZero() {
			continue
		}
		if err := setField(field, tag); err != nil {
			return apperr.Wrapf(err, apperr.CodeInternal,
				"config: applying default for field %q", sf.Name)
		}
	}
	return nil
}

func checkRequired(rv reflect.Value, path string) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}
		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := checkRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}
		if sf.Tag.Get("required") != "true" {
			continue
		}
		if field.IsZero() {
			return apperr.Newf(apperr.CodeValidationFailed,
				"config: required field %q is empty", fieldPath)
		}
	}
	return nil
}

// setField parses value into the field. Supported kinds: string (and
// named string types), bool, signed integers, time.Duration, and
// []string (comma-separated).
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
