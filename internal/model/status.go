package model

import (
	"fmt"
	"strings"
)

// Status — состояние версии требования.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "InProgress"
	StatusDone       Status = "Done"
)

// статусы и их синонимы (включая исторические немецкие названия)
var statusAliases = map[string]Status{
	"open":        StatusOpen,
	"offen":       StatusOpen,
	"inprogress":  StatusInProgress,
	"in_progress": StatusInProgress,
	"in progress": StatusInProgress,
	"in arbeit":   StatusInProgress,
	"done":        StatusDone,
	"fertig":      StatusDone,
}

// ParseStatus разбирает статус без учёта регистра.
func ParseStatus(s string) (Status, error) {
	if st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Valid сообщает, является ли значение одним из известных статусов.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone:
		return true
	}
	return false
}
