package repo

import (
	"ReqKeeper/internal/model"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

var (
	// ErrVersionConflict — два писателя получили один и тот же version_index.
	ErrVersionConflict = errors.New("version index conflict")
	// ErrDuplicate — нарушение уникального ограничения.
	ErrDuplicate = errors.New("duplicate record")
)

var dbLog = zap.NewNop().Sugar()

// SetLogger направляет журнал gorm (ошибки и медленные запросы) в zap.
func SetLogger(l *zap.SugaredLogger) {
	if l != nil {
		dbLog = l
	}
}

type zapWriter struct {
	log *zap.SugaredLogger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.log.Warnf(format, args...)
}

// newGormLogger: промах First/Take является штатным исходом поиска и в журнал не попадает.
func newGormLogger(w logger.Writer) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// InitDB открывает БД по строке подключения.
// postgres://…, postgresql://… или "host=… user=…" — PostgreSQL, всё остальное — путь к файлу SQLite.
func InitDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty database dsn")
	}

	cfg := &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
		Logger:         newGormLogger(zapWriter{log: dbLog}),
	}

	if isPostgresDSN(dsn) {
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	}

	db, err := gorm.Open(gormsqlite.Dialector{DriverName: "sqlite", DSN: sqliteDSN(dsn)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite — один писатель; транзакции сериализуются через единственное соединение
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate создаёт/обновляет схему по моделям.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// sqliteDSN добавляет к пути pragma внешних ключей и формат времени.
func sqliteDSN(dsn string) string {
	params := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

// isUniqueViolation распознаёт нарушение уникальности для postgres и sqlite (modernc).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
