package leveldbkv

import "github.com/pkg/errors"

func errClosedCursor(action string) error {
	return errors.Errorf("cannot %s a closed cursor", action)
}
