package store

import "github.com/rotisserie/eris"

func errUnknownDriver(driver string) error {
	return eris.Errorf("store: unknown driver %q", driver)
}
