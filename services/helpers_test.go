package services

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/blog/config"
	"github.com/cppla/blog/models"
	"github.com/cppla/blog/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(config.Dialector(config.AppConfig{DatabaseURI: "sqlite::memory:"}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestCache(t *testing.T) (*utils.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return utils.NewCache(rc, 0), mr
}

type sentMail struct {
	mu   sync.Mutex
	sent []utils.Email
	err  error
}

func (m *sentMail) Send(_ context.Context, email utils.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *sentMail) last() utils.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return utils.Email{}
	}
	return m.sent[len(m.sent)-1]
}

func mustUser(t *testing.T, svc *AccountService, username, email string) *models.User {
	t.Helper()
	u, err := svc.Register(context.Background(), username, email, "password")
	require.NoError(t, err)
	return u
}
