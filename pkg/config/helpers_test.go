package config_test

import "os"

func unsetAll(keys ...string) error {
	for _, k := range keys {
		if err := os.Unsetenv(k); err != nil {
			return err
		}
	}
	return nil
}
