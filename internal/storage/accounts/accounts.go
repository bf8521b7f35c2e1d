// Пакет accounts — файловое хранилище аккаунтов.
// Каждый аккаунт — отдельный файл <base58>.acct.json в каталоге данных.
// Все операции записи выполняются атомарно: temp → fsync → rename.
package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// AccountSuffix — суффикс файла аккаунта.
const AccountSuffix = ".acct.json"

// maxAccountFileSize — максимальный допустимый размер файла аккаунта (64 КБ).
const maxAccountFileSize = 64 * 1024

// ErrNotFound — аккаунт отсутствует в хранилище.
var ErrNotFound = errors.New("аккаунт не найден")

// Store — файловое хранилище аккаунтов.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New создаёт хранилище аккаунтов в директории dir.
// Создаёт директорию и проверяет её доступность на запись.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию аккаунтов %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".acct_write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o640); err != nil {
		return nil, fmt.Errorf("директория аккаунтов %s недоступна для записи: %w", dir, err)
	}
	os.Remove(testFile)

	return &Store{
		dir:    dir,
		logger: logger.With(slog.String("component", "account_store")),
	}, nil
}

// Dir возвращает путь к директории аккаунтов.
func (s *Store) Dir() string {
	return s.dir
}

// FilePath возвращает путь к файлу аккаунта.
// Пример: "/data/accounts" + addr → "/data/accounts/<base58>.acct.json"
func (s *Store) FilePath(addr model.Identity) string {
	return filepath.Join(s.dir, addr.String()+AccountSuffix)
}

// IsAccountFile проверяет, является ли путь файлом аккаунта.
func IsAccountFile(path string) bool {
	return strings.HasSuffix(path, AccountSuffix)
}

// Write атомарно записывает аккаунт.
// Паттерн: JSON → temp файл → fsync → atomic rename.
func (s *Store) Write(acc *model.Account) error {
	data, err := json.MarshalIndent(acc, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации аккаунта: %w", err)
	}

	if len(data) > maxAccountFileSize {
		return fmt.Errorf("размер файла аккаунта (%d байт) превышает максимум (%d байт)", len(data), maxAccountFileSize)
	}

	path := s.FilePath(acc.Address)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	s.logger.Debug("Аккаунт записан",
		slog.String("address", acc.Address.String()),
		slog.Uint64("lamports", acc.Lamports),
		slog.Int("data_len", len(acc.Data)),
	)
	return nil
}

// Read читает аккаунт по адресу.
// Возвращает ErrNotFound, если файла нет.
func (s *Store) Read(addr model.Identity) (*model.Account, error) {
	path := s.FilePath(addr)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", addr, ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения аккаунта %s: %w", path, err)
	}

	var acc model.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("ошибка десериализации аккаунта %s: %w", path, err)
	}
	if acc.Address != addr {
		return nil, fmt.Errorf("файл %s содержит аккаунт %s", path, acc.Address)
	}

	return &acc, nil
}

// Delete удаляет файл аккаунта.
// Возвращает nil, если файл уже не существует.
func (s *Store) Delete(addr model.Identity) error {
	err := os.Remove(s.FilePath(addr))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления аккаунта %s: %w", addr, err)
	}
	return nil
}

// ScanDir возвращает все аккаунты хранилища.
// Невалидные файлы пропускаются с предупреждением.
func (s *Store) ScanDir() ([]*model.Account, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+AccountSuffix))
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", s.dir, err)
	}

	var result []*model.Account
	for _, path := range matches {
		name := strings.TrimSuffix(filepath.Base(path), AccountSuffix)
		addr, err := model.ParseIdentity(name)
		if err != nil {
			s.logger.Warn("Некорректное имя файла аккаунта",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		acc, err := s.Read(addr)
		if err != nil {
			s.logger.Warn("Не удалось прочитать аккаунт",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		result = append(result, acc)
	}

	return result, nil
}
