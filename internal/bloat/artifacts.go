package bloat

// artifactDirs names directories that hold build caches or dependency
// trees. They are tagged regardless of size so consumers can prioritize
// them for cleanup.
var artifactDirs = map[string]bool{
	// Version control
	".git": true,
	".svn": true,
	".hg":  true,

	// JavaScript / Node
	"node_modules":     true,
	".npm":             true,
	".yarn":            true,
	".pnpm-store":      true,
	".next":            true,
	".nuxt":            true,
	"bower_components": true,
	".turbo":           true,
	".parcel-cache":    true,

	// Python
	"__pycache__":   true,
	".pytest_cache": true,
	".mypy_cache":   true,
	".ruff_cache":   true,
	"venv":          true,
	".venv":         true,
	".tox":          true,
	"site-packages": true,

	// Rust / Java / Go / PHP
	"target":  true,
	".gradle": true,
	".m2":     true,
	".cargo":  true,
	"vendor":  true,

	// Generic build output and caches
	"build":    true,
	"dist":     true,
	"out":      true,
	"coverage": true,
	".cache":   true,
}

// IsArtifactDir reports whether the given base name matches a known
// dependency or build-cache directory.
func IsArtifactDir(name string) bool {
	return artifactDirs[name]
}
