// Package dbtest opens isolated in-memory databases carrying the full schema.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"unicode"

	"github.com/starfeed/backend/pkg/db"
	"github.com/starfeed/backend/pkg/db/models"
)

// Open returns a client over a fresh in-memory sqlite database named after the
// test. A single connection is kept so concurrent transactions serialize the
// same way row locks serialize them on postgres.
func Open(t testing.TB) *db.Client {
	t.Helper()

	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, t.Name())
	client, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := client.DB().AutoMigrate(models.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}
