package accounts

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// testLogger возвращает логгер для тестов (вывод подавляется).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func testAccount(b byte) *model.Account {
	var addr, owner model.Identity
	addr[0] = b
	addr[31] = 0x7f
	owner[0] = 0xEE
	return &model.Account{
		Address:   addr,
		Lamports:  4_000_000,
		Owner:     owner,
		Data:      []byte{1, 2, 3, 0, 0, 0},
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// TestWriteAndRead проверяет запись и чтение аккаунта.
func TestWriteAndRead(t *testing.T) {
	s, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}
	acc := testAccount(1)

	if err := s.Write(acc); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}
	if _, err := os.Stat(s.FilePath(acc.Address)); err != nil {
		t.Fatalf("файл аккаунта не создан: %v", err)
	}

	got, err := s.Read(acc.Address)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if got.Address != acc.Address {
		t.Errorf("Address: ожидалось %s, получено %s", acc.Address, got.Address)
	}
	if got.Lamports != acc.Lamports {
		t.Errorf("Lamports: ожидалось %d, получено %d", acc.Lamports, got.Lamports)
	}
	if got.Owner != acc.Owner {
		t.Errorf("Owner: ожидалось %s, получено %s", acc.Owner, got.Owner)
	}
	if !bytes.Equal(got.Data, acc.Data) {
		t.Errorf("Data: ожидалось %x, получено %x", acc.Data, got.Data)
	}
	if !got.UpdatedAt.Equal(acc.UpdatedAt) {
		t.Errorf("UpdatedAt: ожидалось %v, получено %v", acc.UpdatedAt, got.UpdatedAt)
	}

	// Временный файл не остаётся после записи
	if _, err := os.Stat(s.FilePath(acc.Address) + ".tmp"); !os.IsNotExist(err) {
		t.Error("временный файл не удалён")
	}
}

// TestRead_NotFound проверяет ErrNotFound для отсутствующего аккаунта.
func TestRead_NotFound(t *testing.T) {
	s, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}

	_, err = s.Read(testAccount(9).Address)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получена %v", err)
	}
}

// TestRead_InvalidJSON проверяет ошибку при повреждённом файле.
func TestRead_InvalidJSON(t *testing.T) {
	s, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}
	addr := testAccount(2).Address
	if err := os.WriteFile(s.FilePath(addr), []byte("{broken"), 0o640); err != nil {
		t.Fatal(err)
	}

	_, err = s.Read(addr)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ошибка десериализации, получена %v", err)
	}
}

// TestWrite_Overwrite проверяет перезапись существующего аккаунта.
func TestWrite_Overwrite(t *testing.T) {
	s, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}
	acc := testAccount(3)
	if err := s.Write(acc); err != nil {
		t.Fatal(err)
	}

	acc.Lamports = 1
	acc.Data = []byte{9, 9}
	if err := s.Write(acc); err != nil {
		t.Fatal(err)
	}

	got, err := s.Read(acc.Address)
	if err != nil {
		t.Fatal(err)
	}
	if got.Lamports != 1 || !bytes.Equal(got.Data, []byte{9, 9}) {
		t.Errorf("ожидалась перезаписанная версия, получено %+v", got)
	}
}

// TestWrite_TooLarge проверяет ограничение размера файла.
func TestWrite_TooLarge(t *testing.T) {
	s, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}
	acc := testAccount(4)
	acc.Data = make([]byte, maxAccountFileSize)

	if err := s.Write(acc); err == nil {
		t.Fatal("ожидалась ошибка для слишком большого аккаунта")
	}
	if _, err := os.Stat(s.FilePath(acc.Address)); !os.IsNotExist(err) {
		t.Error("файл не должен быть создан")
	}
}

// TestDelete проверяет удаление, в том числе повторное.
func TestDelete(t *testing.T) {
	s, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}
	acc := testAccount(5)
	if err := s.Write(acc); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(acc.Address); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if err := s.Delete(acc.Address); err != nil {
		t.Errorf("повторное удаление должно быть no-op, получено %v", err)
	}
	if _, err := s.Read(acc.Address); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound после удаления, получена %v", err)
	}
}

// TestScanDir проверяет сканирование и пропуск невалидных файлов.
func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}

	for i := byte(1); i <= 3; i++ {
		if err := s.Write(testAccount(i)); err != nil {
			t.Fatal(err)
		}
	}
	// Невалидное имя и невалидный JSON
	os.WriteFile(filepath.Join(dir, "not-base58-0OIl"+AccountSuffix), []byte("{}"), 0o640)
	os.WriteFile(s.FilePath(testAccount(8).Address), []byte("garbage"), 0o640)
	// Посторонний файл
	os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o640)

	list, err := s.ScanDir()
	if err != nil {
		t.Fatalf("ошибка сканирования: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("ожидалось 3 аккаунта, получено %d", len(list))
	}
}

// TestIsAccountFile проверяет распознавание файлов аккаунтов.
func TestIsAccountFile(t *testing.T) {
	if !IsAccountFile("/data/abc" + AccountSuffix) {
		t.Error("ожидалось true для файла аккаунта")
	}
	if IsAccountFile("/data/abc.json") {
		t.Error("ожидалось false для постороннего файла")
	}
}
