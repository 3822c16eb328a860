// Package version хранит сведения о сборке, заполняемые через -ldflags:
//
//	-X github.com/joeltadeu/pact-shopping-api/internal/version.version=v1.2.0
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns version information populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает хеш коммита сборки.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// UserAgent формирует заголовок User-Agent для исходящих запросов сервиса.
func UserAgent(service string) string {
	return fmt.Sprintf("%s/%s", service, version)
}

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
