package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

var migrationTemplate = template.Must(template.New("migration").Parse(`-- {{.Slug}}
-- +goose Up
-- +goose StatementBegin
SELECT 'up: {{.Slug}}';
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
SELECT 'down: {{.Slug}}';
-- +goose StatementEnd
`))

// CreateSQLMigration writes <dir>/<version>_<slug>.sql. The version is the
// current UTC timestamp, bumped past the newest existing migration so ordering
// stays strictly increasing even with clock skew between developers.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}
	existing, err := scan(os.DirFS(dir))
	if err != nil {
		return "", err
	}

	version, err := ParseVersion(time.Now().UTC().Format("20060102150405"))
	if err != nil {
		return "", err
	}
	if n := len(existing); n > 0 && existing[n-1].Version >= version {
		version = existing[n-1].Version + 1
	}

	path := filepath.Join(dir, fmt.Sprintf("%d_%s.sql", version, slug))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", path, err)
	}
	defer f.Close()

	if err := migrationTemplate.Execute(f, struct{ Slug string }{Slug: slug}); err != nil {
		return "", fmt.Errorf("write %q: %w", path, err)
	}
	return path, nil
}
