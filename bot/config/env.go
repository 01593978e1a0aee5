package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
)

var durationType = reflect.TypeOf(Duration(0))

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		envTag := field.Tag.Get("env")
		if envTag == "" {
			continue
		}
		if envValue, exists := os.LookupEnv(envTag); exists {
			setFieldFromEnv(v.Field(i), envValue)
		}
	}
}

// setFieldFromEnv sets a field's value from an environment variable
func setFieldFromEnv(field reflect.Value, envValue string) {
	if field.Type() == durationType {
		if d, err := parseDurationValue(envValue); err == nil {
			field.SetInt(int64(d))
		}
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v, err := parseInt(envValue); err == nil {
			field.SetInt(v)
		}
	case reflect.Bool:
		if v, err := parseBool(envValue); err == nil {
			field.SetBool(v)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			values := strings.Split(envValue, ",")
			slice := reflect.MakeSlice(field.Type(), len(values), len(values))
			for i, v := range values {
				slice.Index(i).SetString(strings.TrimSpace(v))
			}
			field.Set(slice)
		}
	}
}

func parseInt(s string) (int64, error) {
	var v int64
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

func parseBool(s string) (bool, error) {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "y", nil
}
