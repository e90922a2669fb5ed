// seed inserts development sample data for local testing: an instructor, a student and one device key.
// Idempotent: skips inserts if the dev instructor already exists.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"time"

	"proctor-integrity/backend/internal/config"
	"proctor-integrity/backend/internal/db"
	devicerepo "proctor-integrity/backend/internal/device/repository"
	userdomain "proctor-integrity/backend/internal/user/domain"
	userrepo "proctor-integrity/backend/internal/user/repository"
)

const (
	devInstructorID       = "dev-instructor-001"
	devInstructorProvider = "dev-gh-instructor"
	devStudentID          = "dev-student-001"
	devStudentProvider    = "dev-gh-student"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; set it in the environment or a .env file")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	users := userrepo.NewPostgresRepository(pool)
	existing, err := users.GetByProviderID(ctx, devInstructorProvider)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev instructor exists). Skipping.")
		os.Exit(0)
	}

	now := time.Now().UTC()
	if _, err := users.Upsert(ctx, &userdomain.User{
		ID:         devInstructorID,
		ProviderID: devInstructorProvider,
		Login:      "dev-instructor",
		Role:       userdomain.RoleInstructor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		log.Fatalf("create dev instructor: %v", err)
	}
	student, err := users.Upsert(ctx, &userdomain.User{
		ID:         devStudentID,
		ProviderID: devStudentProvider,
		Login:      "dev-student",
		Role:       userdomain.RoleStudent,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		log.Fatalf("create dev student: %v", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		log.Fatalf("generate device key: %v", err)
	}
	device, err := devicerepo.NewPostgresRepository(pool).Resolve(ctx, hex.EncodeToString(pub), student.ID)
	if err != nil {
		log.Fatalf("register dev device: %v", err)
	}

	log.Println("Seed complete.")
	fmt.Printf("instructor provider id: %s\n", devInstructorProvider)
	fmt.Printf("student provider id:    %s\n", devStudentProvider)
	fmt.Printf("device id:              %s\n", device.ID)
	fmt.Printf("device public key:      %s\n", hex.EncodeToString(pub))
	fmt.Printf("device private seed:    %s\n", hex.EncodeToString(priv.Seed()))
}
