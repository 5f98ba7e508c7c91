package catalog

import (
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	vfs "github.com/worldiety/forestvfs"
)

// Config describes a forest in yaml:
//
//	containers:
//	  - name: photos
//	    uuid: 3f2a9c1e-5d1b-4e8e-9a57-0c6f00f1a2b3
//	    mount: /photos
//	    storages:
//	      - name: nas
//	        uuid: 9b8d3f7e-10a4-4c55-b7f0-6a2f0e9d8c11
//	        type: local
//	        payload:
//	          root: /srv/photos
type Config struct {
	Containers []ContainerConfig `yaml:"containers"`
}

type ContainerConfig struct {
	Name     string        `yaml:"name"`
	UUID     uuid.UUID     `yaml:"uuid"`
	Mount    vfs.Path      `yaml:"mount"`
	Storages []vfs.Storage `yaml:"storages"`
}

// Parse decodes a yaml catalog description.
func Parse(buf []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse catalog")
	}
	return cfg, nil
}

// Build claims every configured container in a new catalog.
func (c Config) Build() (*Catalog, error) {
	cat := New()
	for _, container := range c.Containers {
		if container.UUID == uuid.Nil {
			return nil, errors.Errorf("container %q has no uuid", container.Name)
		}
		for _, storage := range container.Storages {
			if storage.UUID == uuid.Nil {
				return nil, errors.Errorf("container %q: storage %q has no uuid", container.Name, storage.Name)
			}
			if storage.BackendType == "" {
				return nil, errors.Errorf("container %q: storage %q has no type", container.Name, storage.Name)
			}
		}
		if err := cat.Claim(container.Mount, container.UUID, container.Storages...); err != nil {
			return nil, errors.Wrapf(err, "container %q", container.Name)
		}
	}
	return cat, nil
}

// LoadFile reads and builds a catalog from a yaml file.
func LoadFile(path string) (*Catalog, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog %s", path)
	}
	cfg, err := Parse(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "catalog %s", path)
	}
	return cfg.Build()
}
