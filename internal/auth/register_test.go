package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/pkg/config"
	"github.com/veloshop/storefront-backend/pkg/db"
	"github.com/veloshop/storefront-backend/pkg/db/models"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
	"github.com/veloshop/storefront-backend/pkg/security"
)

// The model tags carry postgres defaults sqlite cannot parse, so the test
// table is created with explicit DDL; ids are always assigned in app code.
const userTestDDL = `CREATE TABLE users (
	id text PRIMARY KEY,
	email text NOT NULL UNIQUE,
	password_hash text NOT NULL,
	first_name text NOT NULL,
	last_name text NOT NULL,
	phone text,
	role text NOT NULL DEFAULT 'customer',
	is_active boolean NOT NULL DEFAULT true,
	last_login_at datetime,
	created_at datetime,
	updated_at datetime
)`

func openRegisterTestDB(t *testing.T) *db.Client {
	t.Helper()
	dsn := "file:auth_register_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.Exec(userTestDDL).Error; err != nil {
		t.Fatalf("create users table: %v", err)
	}
	return db.NewWithConn(conn)
}

func registerPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     8,
		ArgonKeyLen:      16,
	}
}

func TestRegisterCreatesCustomer(t *testing.T) {
	client := openRegisterTestDB(t)
	svc, err := NewRegisterService(RegisterServiceParams{DB: client, PasswordConfig: registerPasswordConfig()})
	if err != nil {
		t.Fatalf("new register service: %v", err)
	}

	dto, err := svc.Register(context.Background(), RegisterRequest{
		FirstName: "Nora",
		LastName:  "Vale",
		Email:     "Nora.Vale@Example.com",
		Password:  "super-secret-1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if dto.Email != "nora.vale@example.com" {
		t.Fatalf("expected lowercased email, got %q", dto.Email)
	}

	var stored models.User
	if err := client.DB().First(&stored, "email = ?", "nora.vale@example.com").Error; err != nil {
		t.Fatalf("load stored user: %v", err)
	}
	if stored.PasswordHash == "super-secret-1" {
		t.Fatal("password must not be stored in plaintext")
	}
	ok, err := security.VerifyPassword("super-secret-1", stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash does not verify: ok=%v err=%v", ok, err)
	}
	if !stored.Role.IsValid() || stored.Role.IsStaff() {
		t.Fatalf("expected customer role, got %s", stored.Role)
	}
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	client := openRegisterTestDB(t)
	svc, _ := NewRegisterService(RegisterServiceParams{DB: client, PasswordConfig: registerPasswordConfig()})

	req := RegisterRequest{
		FirstName: "Nora",
		LastName:  "Vale",
		Email:     "nora@example.com",
		Password:  "super-secret-1",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register: %v", err)
	}

	_, err := svc.Register(context.Background(), req)
	if err == nil {
		t.Fatal("expected conflict on duplicate email")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict code, got %v", err)
	}
}
