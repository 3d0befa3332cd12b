// Command seed provisions a development provider account with a starter
// weekly schedule so the API is usable immediately after a fresh database.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fluxmarket/availability-api/internal/models"
	"github.com/fluxmarket/availability-api/internal/repository"
	"github.com/fluxmarket/availability-api/pkg/config"
	"github.com/fluxmarket/availability-api/pkg/database"
)

func main() {
	var (
		email    string
		password string
		fullName string
	)
	flag.StringVar(&email, "email", "provider@example.com", "Provider email")
	flag.StringVar(&password, "password", "changeme", "Provider password")
	flag.StringVar(&fullName, "name", "Demo Provider", "Provider display name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	providerID := uuid.NewString()

	const insertProvider = `INSERT INTO providers (id, email, password_hash, full_name, role, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, true, $6, $6)
ON CONFLICT (email) DO NOTHING`
	if _, err := db.ExecContext(ctx, insertProvider, providerID, email, string(hash), fullName, models.RoleProvider, now); err != nil {
		log.Fatalf("insert provider: %v", err)
	}

	repo := repository.NewAvailabilityRepository(db)

	// Weekday working hours, Monday through Friday (1 = Sunday).
	for day := 2; day <= 6; day++ {
		rule := &models.RecurringRule{
			ProviderID: providerID,
			DayOfWeek:  day,
			StartTime:  "09:00",
			EndTime:    "17:00",
			IsActive:   true,
			Kind:       models.SlotKindAvailable,
		}
		if err := repo.CreateRecurringRule(ctx, rule); err != nil {
			log.Fatalf("insert rule for day %d: %v", day, err)
		}
	}

	log.Printf("seeded provider %s (%s) with weekday 09:00-17:00 availability", email, providerID)
}
