package database

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// ErrVersionConflict 表示乐观并发控制的版本检查失败，
// 即记录在读取之后被其他请求修改过。
var ErrVersionConflict = errors.New("记录版本冲突")

var (
	retryInitialInterval = 5 * time.Millisecond
	retryMaxInterval     = 200 * time.Millisecond
	retryMaxElapsedTime  = 10 * time.Second
	retryMaxRetries      = uint64(50)
)

// IsRetryableError 判断一个错误是否是瞬时的存储冲突
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrVersionConflict) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03": // lock_not_available
			return true
		}
	}
	return false
}

// RetryOnConflict 在一个数据库事务中执行fn，遇到版本冲突或瞬时存储错误时
// 以指数退避整体重试，直到提交成功、出现不可重试的错误或ctx结束。
// 不可重试的错误会原样返回。
func RetryOnConflict(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(retryInitialInterval),
		backoff.WithMaxInterval(retryMaxInterval),
		backoff.WithMaxElapsedTime(retryMaxElapsedTime),
	), retryMaxRetries)

	return backoff.Retry(func() error {
		err := db.WithContext(ctx).Transaction(fn)
		if err != nil && !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}

// CompareAndSwap 在tx中执行一次带版本检查的更新。
// next的Version必须已经是期望的新版本号，expected是读取时的版本号。
// columns是需要写回的列，version和updated_at会被自动包含。
func CompareAndSwap(tx *gorm.DB, next any, expected int64, columns ...string) error {
	cols := append([]string{"version", "updated_at"}, columns...)
	res := tx.Model(next).Where("version = ?", expected).Select(cols).Updates(next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}
