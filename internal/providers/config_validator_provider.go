package providers

import (
	"clarity/internal/structures"
	"fmt"

	"github.com/gookit/validate"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (c *CnfValidator) Validate() error {
	v := validate.Struct(c.conf)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.One())
	}

	switch c.conf.Storage.Driver {
	case "bolt":
		if c.conf.Storage.FilePath == "" {
			return fmt.Errorf("invalid config: storage.filePath is required for the bolt driver")
		}
	case "postgres":
		if c.conf.Storage.PostgresURL == "" {
			return fmt.Errorf("invalid config: storage.postgresUrl is required for the postgres driver")
		}
	}
	return nil
}
