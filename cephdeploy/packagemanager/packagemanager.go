package packagemanager

import "context"

type PackageManager interface {
	Update(ctx context.Context) error
	Install(ctx context.Context, pkgs ...string) error
	InstallFile(ctx context.Context, path string) error
	Remove(ctx context.Context, purge bool, pkgs ...string) error
	IsInstalled(ctx context.Context, pkg string) (bool, error)

	// Idempotent package management
	EnsurePackagePresent(ctx context.Context, pkg string) error
}
