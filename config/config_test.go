package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func TestLoadFileDefaultsAndEnv(t *testing.T) {
	t.Setenv("SECRET_KEY", "env-secret")
	t.Setenv("POSTS_PER_PAGE", "5")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.SecretKey)
	assert.Equal(t, 5, cfg.PostsPerPage)
	assert.Equal(t, 1800, cfg.ResetTokenExpiresSec)
	assert.Equal(t, 30*time.Minute, cfg.ResetTokenTTL())
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "noreply@demo.com", cfg.MailSender)
	assert.Equal(t, "default.jpg", cfg.DefaultProfilePicture)
}

func TestLoadFileDefaultProfilePictureFromEnv(t *testing.T) {
	t.Setenv("SECRET_KEY", "env-secret")
	t.Setenv("DEFAULT_PROFILE_PICTURE", "anon.png")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "anon.png", cfg.DefaultProfilePicture)
}

func TestLoadFileReadsJSONAndEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"SecretKey":"file-secret","AppPort":"9000","DatabaseURI":"sqlite:file.db"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("APP_PORT", "9100")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file-secret", cfg.SecretKey)
	assert.Equal(t, "9100", cfg.AppPort)
	assert.Equal(t, "sqlite:file.db", cfg.DatabaseURI)
}

func TestLoadFileRequiresSecret(t *testing.T) {
	t.Setenv("SECRET_KEY", "")
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDialectorSelectsDriver(t *testing.T) {
	assert.Equal(t, "sqlite", Dialector(AppConfig{DatabaseURI: "sqlite::memory:"}).Name())
	assert.Equal(t, "mysql", Dialector(AppConfig{DatabaseURI: "root:pw@tcp(db:3306)/blog"}).Name())
	assert.Equal(t, "mysql", Dialector(AppConfig{DBUser: "root", DBHost: "db", DBPort: "3306", DBName: "blog"}).Name())
}

func TestSQLiteDSNEnablesForeignKeys(t *testing.T) {
	cases := map[string]string{
		"sqlite::memory:":             ":memory:?_foreign_keys=1",
		"sqlite:///var/blog.db":       "/var/blog.db?_foreign_keys=1",
		"sqlite:blog.db?cache=shared": "blog.db?cache=shared&_foreign_keys=1",
		"sqlite:blog.db?_fk=0":        "blog.db?_fk=0",
	}
	for uri, want := range cases {
		assert.Equal(t, want, sqliteDSN(uri), uri)
	}
	d, ok := Dialector(AppConfig{DatabaseURI: "sqlite::memory:"}).(*sqlite.Dialector)
	require.True(t, ok)
	assert.Equal(t, ":memory:?_foreign_keys=1", d.DSN)
}

type cascadeOwner struct {
	ID    uint
	Items []cascadeItem `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE;"`
}

type cascadeItem struct {
	ID      uint
	OwnerID uint
}

func TestInitDatabaseSQLiteCascadesDeletes(t *testing.T) {
	db, err := InitDatabase(AppConfig{DatabaseURI: "sqlite::memory:", LogLevel: "silent"}, &cascadeOwner{}, &cascadeItem{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	owner := cascadeOwner{Items: []cascadeItem{{}, {}}}
	require.NoError(t, db.Create(&owner).Error)
	require.NoError(t, db.Delete(&cascadeOwner{}, owner.ID).Error)

	var left int64
	require.NoError(t, db.Model(&cascadeItem{}).Count(&left).Error)
	assert.Zero(t, left)
}
