//go:build !sqlite
// +build !sqlite

package activity

import (
	"errors"

	"bagwatch/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Log, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite activity log not built: build with -tags sqlite")
}
