package vfs

import (
	"context"

	"github.com/google/uuid"
)

// A Storage describes one physical replica of a container. It is produced by the catalog and only read here.
type Storage struct {
	Name        string            `yaml:"name"`
	UUID        uuid.UUID         `yaml:"uuid"`
	BackendType string            `yaml:"type"`
	Payload     map[string]string `yaml:"payload,omitempty"`
}

// PayloadValue returns the backend specific value for key or the empty string.
func (s Storage) PayloadValue(key string) string {
	return s.Payload[key]
}

func (s Storage) String() string {
	return s.BackendType + ":" + s.Name + "(" + s.UUID.String() + ")"
}

// A ResolvedPath is one answer of a Resolver, either a *PathWithStorages or a *VirtualPath.
type ResolvedPath interface {
	isResolvedPath()
}

// PathWithStorages is a forest path claimed by a container. All Storages are equivalent replicas, ordered by
// preference.
type PathWithStorages struct {
	PathWithinStorage Path
	StoragesID        uuid.UUID
	Storages          []Storage
}

func (*PathWithStorages) isResolvedPath() {}

// VirtualPath is a forest path which is not claimed itself, but exists because a descendant is claimed.
type VirtualPath struct {
	AbsolutePath Path
}

func (*VirtualPath) isResolvedPath() {}

// The Resolver maps absolute forest paths to the containers claiming them. It is backed by the catalog, which is
// not part of this package. Every call should answer from one consistent catalog snapshot.
type Resolver interface {
	// Resolve returns every claim answering for the absolute path. Overlapping claims yield several results,
	// an unknown path yields none.
	Resolve(ctx context.Context, absolute Path) ([]ResolvedPath, error)

	// Children returns the names directly below absolute which only exist because a descendant is claimed.
	Children(ctx context.Context, absolute Path) ([]string, error)
}
