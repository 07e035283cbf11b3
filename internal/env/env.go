// Package env loads configuration structs from environment variables.
package env

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Validator is implemented by config structs that need validation.
type Validator interface {
	Validate() error
}

// Lookup resolves a variable, reporting whether it is set.
type Lookup func(key string) (string, bool)

// FromMap returns a Lookup over a fixed set of variables.
func FromMap(vars map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

// ErrInvalidValue is returned when an environment variable value cannot be parsed.
type ErrInvalidValue struct {
	Field  string // Dotted path from the root struct, e.g. "HTTP.Port"
	EnvVar string
	Value  string
	Err    error
}

func (e ErrInvalidValue) Error() string {
	return fmt.Sprintf("invalid value for %s=%q (field: %s): %v", e.EnvVar, e.Value, e.Field, e.Err)
}

func (e ErrInvalidValue) Unwrap() error {
	return e.Err
}

// ErrMissing is returned when a variable tagged required:"true" is unset and has no default.
type ErrMissing struct {
	Field  string
	EnvVar string
}

func (e ErrMissing) Error() string {
	return fmt.Sprintf("%s is required (field: %s)", e.EnvVar, e.Field)
}

// ErrNotStructPointer is returned when Load is called with a non-pointer or non-struct argument.
type ErrNotStructPointer struct {
	Type string
}

func (e ErrNotStructPointer) Error() string {
	return fmt.Sprintf("env.Load: argument must be a pointer to struct, got %s", e.Type)
}

// ErrUnsupportedType is returned when a field has an unsupported type.
type ErrUnsupportedType struct {
	Kind string
}

func (e ErrUnsupportedType) Error() string {
	return fmt.Sprintf("unsupported type: %s", e.Kind)
}

// Load fills v from the process environment. See LoadFrom.
func Load(v any) error {
	return LoadFrom(v, os.LookupEnv)
}

// LoadFrom fills the struct pointed to by v from lookup, then validates every
// nested struct implementing Validator, innermost first, and finally v itself.
//
// Supported struct tags:
//   - env:"VAR_NAME" maps the field to VAR_NAME
//   - default:"value" is used when VAR_NAME is unset (an empty but set variable is respected)
//   - required:"true" fails with ErrMissing when VAR_NAME is unset and there is no default
//
// Supported field types: string, bool, signed integers, time.Duration
// (Go duration strings like "5s") and []string (comma separated, blanks dropped).
// Nested and embedded structs are loaded recursively.
func LoadFrom(v any, lookup Lookup) error {
	ptrVal := reflect.ValueOf(v)
	if ptrVal.Kind() != reflect.Pointer || ptrVal.Elem().Kind() != reflect.Struct {
		return ErrNotStructPointer{Type: fmt.Sprintf("%T", v)}
	}

	l := loader{lookup: lookup}
	if err := l.loadStruct(ptrVal.Elem(), ""); err != nil {
		return err
	}

	if validator, ok := v.(Validator); ok {
		return validator.Validate()
	}
	return nil
}

type loader struct {
	lookup Lookup
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
)

func (l loader) loadStruct(val reflect.Value, prefix string) error {
	typ := val.Type()

	for i := range val.NumField() {
		field := val.Field(i)
		structField := typ.Field(i)
		if !field.CanSet() {
			continue
		}

		path := structField.Name
		if prefix != "" && !structField.Anonymous {
			path = prefix + "." + structField.Name
		} else if prefix != "" {
			path = prefix
		}

		if field.Kind() == reflect.Struct && field.Type() != timeType {
			if err := l.loadStruct(field, path); err != nil {
				return err
			}
			if validator, ok := field.Addr().Interface().(Validator); ok {
				if err := validator.Validate(); err != nil {
					return err
				}
			}
			continue
		}

		if err := l.loadField(field, structField, path); err != nil {
			return err
		}
	}

	return nil
}

func (l loader) loadField(field reflect.Value, structField reflect.StructField, path string) error {
	key := structField.Tag.Get("env")
	if key == "" {
		return nil
	}

	value, ok := l.lookup(key)
	if !ok {
		def, hasDefault := structField.Tag.Lookup("default")
		switch {
		case hasDefault:
			value = def
		case structField.Tag.Get("required") == "true":
			return ErrMissing{Field: path, EnvVar: key}
		default:
			return nil
		}
	}

	if err := setField(field, value); err != nil {
		return ErrInvalidValue{Field: path, EnvVar: key, Value: value, Err: err}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
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
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return ErrUnsupportedType{Kind: "[]" + field.Type().Elem().Kind().String()}
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return ErrUnsupportedType{Kind: field.Kind().String()}
	}
	return nil
}
