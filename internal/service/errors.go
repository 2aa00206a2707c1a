package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrAccessDenied — у пользователя нет доступа к проекту (или к чужой записи).
	ErrAccessDenied = errors.New("access denied")
	// ErrNotFound: сущность не найдена.
	ErrNotFound = errors.New("not found")
	// ErrValidation — некорректные входные данные, текст ошибки содержит поле.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidParent — родительский комментарий отсутствует, удалён или относится к другой версии.
	ErrInvalidParent = fmt.Errorf("%w: invalid parent comment", ErrValidation)
	errTrashed       = fmt.Errorf("%w: requirement is in the trash, restore it first", ErrValidation)
	// ErrEditForbidden — версия заблокирована другим пользователем.
	ErrEditForbidden = errors.New("edit forbidden: version is blocked")
	// ErrConcurrentVersionConflict — гонка за version_index не разрешилась повтором.
	ErrConcurrentVersionConflict = errors.New("concurrent version conflict")

	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// invalid оборачивает ошибку валидации (ozzo или текст) в ErrValidation.
func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFound переводит gorm.ErrRecordNotFound в ErrNotFound, остальное отдаёт как есть.
func notFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
